// Package report renders diff and apply results as human-readable text for
// the CLI. Markers: "+" for additions, "~" for modifications, "!" for live
// entities the configuration does not cover.
package report

import (
	"fmt"
	"strings"

	"github.com/everstacklabs/orgsync/internal/apply"
	"github.com/everstacklabs/orgsync/internal/diff"
	"github.com/everstacklabs/orgsync/internal/model"
)

// RenderDiff formats one organization diff.
func RenderDiff(d *diff.Diff) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Organization %s\n", d.Org)

	if !d.HasChanges() && len(d.Warnings) == 0 {
		b.WriteString("  no changes\n")
		return b.String()
	}

	for _, n := range d.Nodes {
		header := fmt.Sprintf("%s %s", n.Scope, n.Kind)
		for _, a := range n.Additions {
			fmt.Fprintf(&b, "  + %s %q\n", header, a.Key())
			renderNested(&b, a)
		}
		for _, m := range n.Modifications {
			if m.CurrentKey != m.Key {
				fmt.Fprintf(&b, "  ~ %s %q (renamed from %q)\n", header, m.Key, m.CurrentKey)
			} else {
				fmt.Fprintf(&b, "  ~ %s %q\n", header, m.Key)
			}
			for _, c := range m.Changes {
				fmt.Fprintf(&b, "      %s: %s -> %s\n", c.Field, renderValue(c.Current), renderValue(c.Expected))
			}
		}
		for _, u := range n.Unmatched {
			fmt.Fprintf(&b, "  ! %s %q exists live but is not configured\n", header, u.Key())
		}
	}

	for _, w := range d.Warnings {
		fmt.Fprintf(&b, "  warning: %s\n", w)
	}

	fmt.Fprintf(&b, "\n%d addition(s), %d difference(s)\n", d.Summary.Additions, d.Summary.Differences)
	return b.String()
}

// renderNested lists the children an addition carries, indented under it.
func renderNested(b *strings.Builder, e model.Entity) {
	switch v := e.(type) {
	case *model.Repository:
		for _, rs := range v.Rulesets {
			fmt.Fprintf(b, "      + ruleset %q\n", rs.Pattern)
		}
		for _, s := range v.Secrets {
			fmt.Fprintf(b, "      + secret %q\n", s.Name)
		}
		for _, vr := range v.Variables {
			fmt.Fprintf(b, "      + variable %q\n", vr.Name)
		}
		for _, env := range v.Environments {
			fmt.Fprintf(b, "      + environment %q\n", env.Name)
			for _, bp := range env.BranchPolicies {
				fmt.Fprintf(b, "        + branch policy %q\n", bp.Name)
			}
		}
	case *model.Environment:
		for _, bp := range v.BranchPolicies {
			fmt.Fprintf(b, "      + branch policy %q\n", bp.Name)
		}
	}
}

func renderValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "<unset>"
	case string:
		return fmt.Sprintf("%q", t)
	case []string:
		return "[" + strings.Join(t, ", ") + "]"
	default:
		return fmt.Sprintf("%v", t)
	}
}

// RenderApply formats the outcome of an apply run.
func RenderApply(org string, res *apply.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Organization %s: applied %d addition(s), %d difference(s)\n",
		org, res.Additions, res.Differences)

	for _, f := range res.Failures {
		fmt.Fprintf(&b, "  failed: %s %s %s %q: %v\n",
			f.Patch.Op, f.Patch.Scope, f.Patch.Kind, f.Patch.Key, f.Err)
	}
	if len(res.Failures) > 0 {
		fmt.Fprintf(&b, "%d operation(s) failed\n", len(res.Failures))
	}
	return b.String()
}
