/*
Package dsl provides a Go DSL for programmatically constructing Quorum flows.

It allows developers to define approval flows using a fluent builder instead of
hand-writing JSON, YAML or HCL documents. This is particularly useful for
unit testing, dynamic flow generation and IDE autocompletion.

Example usage:

	b := dsl.New("expense", "1")

	b.Add("start").Start().Go("risk")
	b.Add("risk").RiskEval("amount", "urgency").Provider("deepseek").Go("route")
	b.Add("route").
		Branch("risk == 'high'", "cfo").
		Branch("risk != 'high'", "manager")
	b.Add("cfo").Approve("cfo").Go("end")
	b.Add("manager").Approve("manager").Go("end")
	b.Add("end").End()

	graph, err := b.Build() // validated, immutable *flow.Graph
*/
package dsl
