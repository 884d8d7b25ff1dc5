package flow

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// hclDocument represents the top-level structure of a flow file for decoding.
//
//	flow_id = "expense"
//	version = "1"
//
//	node "start" {
//	  type = "start"
//	  next = "risk"
//	}
//
//	node "route" {
//	  type = "branch"
//	  branch {
//	    condition = "risk == 'high'"
//	    next      = "cfo"
//	  }
//	}
type hclDocument struct {
	FlowID  string     `hcl:"flow_id"`
	Name    string     `hcl:"name,optional"`
	Version string     `hcl:"version,optional"`
	Nodes   []*hclNode `hcl:"node,block"`
}

type hclNode struct {
	ID         string       `hcl:"id,label"`
	Type       string       `hcl:"type"`
	Name       string       `hcl:"name,optional"`
	Next       string       `hcl:"next,optional"`
	Approver   string       `hcl:"approver,optional"`
	Fields     []string     `hcl:"fields,optional"`
	Provider   string       `hcl:"llm_provider,optional"`
	Paths      []string     `hcl:"paths,optional"`
	BestEffort *bool        `hcl:"best_effort,optional"`
	Branches   []*hclBranch `hcl:"branch,block"`
}

type hclBranch struct {
	Condition string `hcl:"condition"`
	Next      string `hcl:"next"`
}

func parseHCL(data []byte) (*Document, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, "flow.hcl")
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse hcl flow: %w", diags)
	}

	var parsed hclDocument
	diags = gohcl.DecodeBody(file.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode hcl flow: %w", diags)
	}

	doc := &Document{
		FlowID:  parsed.FlowID,
		Name:    parsed.Name,
		Version: parsed.Version,
		Nodes:   make([]NodeDocument, 0, len(parsed.Nodes)),
	}
	for _, n := range parsed.Nodes {
		nd := NodeDocument{
			ID:       n.ID,
			Type:     n.Type,
			Name:     n.Name,
			Next:     n.Next,
			Approver: n.Approver,
		}
		params := map[string]any{}
		if n.Fields != nil {
			params["fields"] = n.Fields
		}
		if n.Provider != "" {
			params["llm_provider"] = n.Provider
		}
		if n.Paths != nil {
			params["paths"] = n.Paths
		}
		if n.BestEffort != nil {
			params["best_effort"] = *n.BestEffort
		}
		if len(params) > 0 {
			nd.Params = params
		}
		for _, b := range n.Branches {
			nd.Branches = append(nd.Branches, BranchDocument{Condition: b.Condition, Next: b.Next})
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	return doc, nil
}

func marshalHCL(doc *Document) []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()
	body.SetAttributeValue("flow_id", cty.StringVal(doc.FlowID))
	if doc.Name != "" {
		body.SetAttributeValue("name", cty.StringVal(doc.Name))
	}
	if doc.Version != "" {
		body.SetAttributeValue("version", cty.StringVal(doc.Version))
	}

	for _, n := range doc.Nodes {
		body.AppendNewline()
		nb := body.AppendNewBlock("node", []string{n.ID}).Body()
		nb.SetAttributeValue("type", cty.StringVal(n.Type))
		setOptionalString(nb, "name", n.Name)
		setOptionalString(nb, "next", n.Next)
		setOptionalString(nb, "approver", n.Approver)

		// stable attribute order regardless of map iteration
		for _, key := range []string{"fields", "llm_provider", "paths", "best_effort"} {
			v, ok := n.Params[key]
			if !ok {
				continue
			}
			switch t := v.(type) {
			case string:
				nb.SetAttributeValue(key, cty.StringVal(t))
			case bool:
				nb.SetAttributeValue(key, cty.BoolVal(t))
			default:
				nb.SetAttributeValue(key, stringList(toStrings(v)))
			}
		}

		for _, b := range n.Branches {
			bb := nb.AppendNewBlock("branch", nil).Body()
			bb.SetAttributeValue("condition", cty.StringVal(b.Condition))
			bb.SetAttributeValue("next", cty.StringVal(b.Next))
		}
	}
	return f.Bytes()
}

func setOptionalString(body *hclwrite.Body, name, value string) {
	if value != "" {
		body.SetAttributeValue(name, cty.StringVal(value))
	}
}

func stringList(items []string) cty.Value {
	if len(items) == 0 {
		return cty.ListValEmpty(cty.String)
	}
	vals := make([]cty.Value, 0, len(items))
	for _, s := range items {
		vals = append(vals, cty.StringVal(s))
	}
	return cty.ListVal(vals)
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}
