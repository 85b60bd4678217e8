package browser

import (
	"encoding/json"
	"strings"
)

// registry keeps element references alive on the page side. Refs are stable
// per element; a ref whose element left the document resolves to null.
// Navigation replaces window, which drops every ref.
const registry = `
const H = (function() {
    if (!window.__harvest) {
        window.__harvest = {
            seq: 0,
            byRef: new Map(),
            byEl: new WeakMap(),
            ref(el) {
                let r = this.byEl.get(el);
                if (r && this.byRef.get(r) === el) return r;
                r = 'e' + (++this.seq);
                this.byEl.set(el, r);
                this.byRef.set(r, el);
                return r;
            },
            get(r) {
                const el = this.byRef.get(r);
                if (!el || !el.isConnected) return null;
                return el;
            }
        };
    }
    return window.__harvest;
})();
`

const findScript = `
const ctx = ref ? H.get(ref) : document;
if (!ctx) return { stale: true, refs: [] };
const refs = [];
if (kind === 'css') {
    ctx.querySelectorAll(expr).forEach(el => refs.push(H.ref(el)));
} else {
    const snap = document.evaluate(expr, ctx, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
    for (let i = 0; i < snap.snapshotLength; i++) {
        const n = snap.snapshotItem(i);
        if (n.nodeType === Node.ELEMENT_NODE) refs.push(H.ref(n));
    }
}
return { stale: false, refs: refs };
`

// hitTestScript reports the element's center and whether a click there
// would land on it (or one of its descendants).
const hitTestScript = `
const el = H.get(ref);
if (!el) return { stale: true };
const r = el.getBoundingClientRect();
const x = r.left + r.width / 2;
const y = r.top + r.height / 2;
const top = document.elementFromPoint(x, y);
const hit = !!top && (top === el || el.contains(top) || (el.control && el.control === top));
return { stale: false, x: x, y: y, hit: hit, blocker: top ? top.tagName.toLowerCase() + (top.className ? '.' + String(top.className).split(' ').join('.') : '') : '' };
`

const scriptClickScript = `
const el = H.get(ref);
if (!el) return false;
el.click();
return true;
`

const scrollScript = `
const el = H.get(ref);
if (!el) return false;
el.scrollIntoView({ block: 'center', inline: 'center' });
return true;
`

const attributeScript = `
const el = H.get(ref);
if (!el) return { stale: true };
return { stale: false, present: el.hasAttribute(name), value: el.getAttribute(name) || '' };
`

const textScript = `
const el = H.get(ref);
if (!el) return { stale: true };
const t = el.innerText !== undefined ? el.innerText : el.textContent;
return { stale: false, value: t || '' };
`

const outerHTMLScript = `
const el = H.get(ref);
if (!el) return { stale: true };
return { stale: false, value: el.outerHTML };
`

const checkedScript = `
const el = H.get(ref);
if (!el) return { stale: true };
return { stale: false, value: el.checked === true };
`

const connectedScript = `
return H.get(ref) !== null;
`

// buildScript wraps body in an IIFE with the registry prelude and binds the
// named arguments as JSON literals. Scripts always return a value.
func buildScript(body string, args map[string]any) string {
	var b strings.Builder
	b.WriteString("(function() {\n")
	b.WriteString(registry)
	for name, v := range args {
		raw, err := json.Marshal(v)
		if err != nil {
			raw = []byte("null")
		}
		b.WriteString("const ")
		b.WriteString(name)
		b.WriteString(" = ")
		b.Write(raw)
		b.WriteString(";\n")
	}
	b.WriteString(body)
	b.WriteString("\n})()")
	return b.String()
}
