package screener

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/jmylchreest/screenharvest/internal/browser"
)

// signatureRows is how many leading rows make up a signature.
const signatureRows = 3

// TableSnapshot is a before-action baseline of the results table. Zero
// handles mean the element was absent.
type TableSnapshot struct {
	Root        browser.Handle
	FirstRow    browser.Handle
	Signature   string
	ContentHash string
}

// ChangeDetector fingerprints the results table.
type ChangeDetector struct {
	drv browser.Driver
	loc Locators
}

// NewChangeDetector returns a detector for the table described by loc.
func NewChangeDetector(drv browser.Driver, loc Locators) *ChangeDetector {
	return &ChangeDetector{drv: drv, loc: loc}
}

// Snapshot captures the current table state.
func (c *ChangeDetector) Snapshot(ctx context.Context) (TableSnapshot, error) {
	var snap TableSnapshot
	root, err := browser.FindFirst(ctx, c.drv, c.loc.TableBody)
	if err != nil {
		return snap, err
	}
	snap.Root = root

	rows, err := browser.FindAll(ctx, c.drv, c.loc.TableRows)
	if err != nil {
		return snap, err
	}
	if len(rows) > 0 {
		snap.FirstRow = rows[0]
	}
	if snap.Signature, err = c.signatureOf(ctx, rows); err != nil {
		return snap, err
	}
	if snap.ContentHash, err = c.hashOf(ctx, root); err != nil {
		return snap, err
	}
	return snap, nil
}

// Signature is the newline-joined text of the first three rows. Rows that
// vanish while being read are skipped.
func (c *ChangeDetector) Signature(ctx context.Context) (string, error) {
	rows, err := browser.FindAll(ctx, c.drv, c.loc.TableRows)
	if err != nil {
		return "", err
	}
	return c.signatureOf(ctx, rows)
}

func (c *ChangeDetector) signatureOf(ctx context.Context, rows []browser.Handle) (string, error) {
	if len(rows) > signatureRows {
		rows = rows[:signatureRows]
	}
	parts := make([]string, 0, len(rows))
	for _, r := range rows {
		txt, err := c.drv.Text(ctx, r)
		if err != nil {
			return "", err
		}
		if v, ok := txt.Get(); ok {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// ContentHash is the SHA-256 of the table body's visible text, or "" when
// the body is absent or blank.
func (c *ChangeDetector) ContentHash(ctx context.Context) (string, error) {
	root, err := browser.FindFirst(ctx, c.drv, c.loc.TableBody)
	if err != nil {
		return "", err
	}
	return c.hashOf(ctx, root)
}

func (c *ChangeDetector) hashOf(ctx context.Context, root browser.Handle) (string, error) {
	if root.IsZero() {
		return "", nil
	}
	txt, err := c.drv.Text(ctx, root)
	if err != nil {
		return "", err
	}
	v, ok := txt.Get()
	if !ok || strings.TrimSpace(v) == "" {
		return "", nil
	}
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:]), nil
}

// HasChanged reports whether the live content hash is non-empty and differs
// from the baseline.
func (c *ChangeDetector) HasChanged(ctx context.Context, before TableSnapshot) (bool, error) {
	h, err := c.ContentHash(ctx)
	if err != nil {
		return false, err
	}
	return h != "" && h != before.ContentHash, nil
}
