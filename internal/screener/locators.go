package screener

import (
	"fmt"
	"sort"

	"github.com/jmylchreest/screenharvest/internal/browser"
)

// DefaultURL is the equity screener, first page, 100 rows per page.
const DefaultURL = "https://finance.yahoo.com/research-hub/screener/equity/?start=0&count=100"

// Locators holds every element query the screener uses. Dialog-scoped
// selectors are relative to the dialog root; option-scoped ones to the
// option label.
type Locators struct {
	RegionTrigger  browser.Selector
	Dialogs        browser.Selector
	DialogApply    browser.Selector
	DialogOptions  browser.Selector
	OptionName     browser.Selector
	OptionCheckbox browser.Selector
	Table          browser.Selector
	TableBody      browser.Selector
	TableRows      browser.Selector
	EmptyState     browser.Selector
	FirstPage      browser.Selector
	NextPage       browser.Selector
	CookieAccept   browser.Selector
}

// DefaultLocators returns the locators for the current screener markup.
func DefaultLocators() Locators {
	return Locators{
		RegionTrigger: browser.Selector{Name: "region_trigger", Kind: browser.XPath,
			Expr: "//button[@aria-haspopup='true' and (contains(@data-ylk,'slk:Region') or .//div[normalize-space()='Region'])]"},
		Dialogs:        browser.Selector{Name: "dialogs", Kind: browser.CSS, Expr: "div.dialog-container.menu-surface-dialog"},
		DialogApply:    browser.Selector{Name: "dialog_apply", Kind: browser.XPath, Expr: ".//button[@aria-label='Apply']"},
		DialogOptions:  browser.Selector{Name: "dialog_options", Kind: browser.XPath, Expr: ".//div[contains(@class,'options')]//label"},
		OptionName:     browser.Selector{Name: "option_name", Kind: browser.XPath, Expr: ".//span"},
		OptionCheckbox: browser.Selector{Name: "option_checkbox", Kind: browser.XPath, Expr: ".//input[@type='checkbox']"},
		Table:          browser.Selector{Name: "table", Kind: browser.CSS, Expr: "table"},
		TableBody:      browser.Selector{Name: "table_body", Kind: browser.CSS, Expr: "table tbody"},
		TableRows:      browser.Selector{Name: "table_rows", Kind: browser.CSS, Expr: "table tbody tr"},
		EmptyState: browser.Selector{Name: "empty_state", Kind: browser.XPath,
			Expr: "//*[contains(translate(.,'ABCDEFGHIJKLMNOPQRSTUVWXYZ','abcdefghijklmnopqrstuvwxyz'),'no results') " +
				"or contains(translate(.,'ABCDEFGHIJKLMNOPQRSTUVWXYZ','abcdefghijklmnopqrstuvwxyz'),'no matching')]"},
		FirstPage: browser.Selector{Name: "first_page", Kind: browser.CSS, Expr: `button[data-testid="first-page-button"]`},
		NextPage:  browser.Selector{Name: "next_page", Kind: browser.CSS, Expr: `button[data-testid="next-page-button"]`},
		CookieAccept: browser.Selector{Name: "cookie_accept", Kind: browser.XPath,
			Expr: "//button[contains(., 'Accept') or contains(., 'I agree') or contains(., 'Agree')]"},
	}
}

func (l *Locators) byName() map[string]*browser.Selector {
	return map[string]*browser.Selector{
		"region_trigger":  &l.RegionTrigger,
		"dialogs":         &l.Dialogs,
		"dialog_apply":    &l.DialogApply,
		"dialog_options":  &l.DialogOptions,
		"option_name":     &l.OptionName,
		"option_checkbox": &l.OptionCheckbox,
		"table":           &l.Table,
		"table_body":      &l.TableBody,
		"table_rows":      &l.TableRows,
		"empty_state":     &l.EmptyState,
		"first_page":      &l.FirstPage,
		"next_page":       &l.NextPage,
		"cookie_accept":   &l.CookieAccept,
	}
}

// WithOverrides returns a copy with the named locators replaced. Values use
// browser.ParseSelector notation ("css:..." or "xpath:...").
func (l Locators) WithOverrides(overrides map[string]string) (Locators, error) {
	fields := l.byName()
	for name, expr := range overrides {
		sel, ok := fields[name]
		if !ok {
			return Locators{}, fmt.Errorf("unknown locator %q (known: %v)", name, LocatorNames())
		}
		if expr == "" {
			return Locators{}, fmt.Errorf("locator %q: empty expression", name)
		}
		*sel = browser.ParseSelector(name, expr)
	}
	return l, nil
}

// LocatorNames lists the names accepted by WithOverrides.
func LocatorNames() []string {
	var l Locators
	names := make([]string, 0, len(l.byName()))
	for name := range l.byName() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
