package models

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/awalterschulze/gographviz"

	"github.com/gorgonia/boltzmann/internal/matrix"
)

type layerNode struct {
	Index  int
	Family string
	Size   int
	Loc    string
}

// ToDot renders the layer stack as a graphviz digraph: one node per layer, one edge per
// weight matrix labelled with its shape and norm.
func (m *Model) ToDot() string {
	g := gographviz.NewGraph()
	if err := g.SetName("G"); err != nil {
		panic(err)
	}
	g.SetDir(true)

	var buf bytes.Buffer
	for i, l := range m.Layers {
		n := layerNode{
			Index:  i,
			Family: l.Family.String(),
			Size:   l.Len(),
			Loc:    fmt.Sprintf("%.3g", matrix.Mean(matrix.F32s(l.Loc))),
		}
		if err := tmpl.Execute(&buf, n); err != nil {
			panic(err)
		}
		attrs := map[string]string{
			"fontname": "Monaco",
			"shape":    "none",
			"label":    buf.String(),
		}
		if err := g.AddNode("G", nodeName(i), attrs); err != nil {
			panic(err)
		}
		buf.Reset()
	}
	for i, w := range m.Weights {
		lower, upper := w.Shape()
		var ss float32
		for _, x := range matrix.F32s(w.W) {
			ss += x * x
		}
		attrs := map[string]string{
			"label": fmt.Sprintf("\"W%d %dx%d |W|²=%.3g\"", i, lower, upper, ss),
		}
		if err := g.AddEdge(nodeName(i), nodeName(i+1), true, attrs); err != nil {
			panic(err)
		}
	}
	return g.String()
}

func nodeName(i int) string { return fmt.Sprintf("layer%d", i) }

const tmplRaw = `<
<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0">
<TR><TD>Layer</TD><TD>{{.Index}}</TD></TR>
<TR><TD>Family</TD><TD>{{.Family}}</TD></TR>
<TR><TD>Units</TD><TD>{{.Size}}</TD></TR>
<TR><TD>Mean loc</TD><TD>{{.Loc}}</TD></TR>
</TABLE>
>
`

var tmpl = template.Must(template.New("layer").Parse(tmplRaw))
