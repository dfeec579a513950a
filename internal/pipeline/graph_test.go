package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func nop(name string) Stage {
	return Func(name, name+" stage", func(context.Context) error { return nil })
}

func TestGraphValidateDuplicate(t *testing.T) {
	g := NewGraph().Add(nop("a")).Add(nop("a"))
	err := g.Validate()
	var ge *GraphError
	require.ErrorAs(t, err, &ge)
	require.Equal(t, ErrKindDuplicate, ge.Kind)
	require.ErrorIs(t, err, ErrInvalidGraph)
}

func TestGraphValidateUnknownDependency(t *testing.T) {
	g := NewGraph().Add(nop("a"), "missing")
	var ge *GraphError
	require.ErrorAs(t, g.Validate(), &ge)
	require.Equal(t, ErrKindUnknownDep, ge.Kind)
	require.Equal(t, []string{"a", "missing"}, ge.Path)
}

func TestGraphValidateCycleReportsPath(t *testing.T) {
	g := NewGraph().
		Add(nop("root")).
		Add(nop("a"), "root", "c").
		Add(nop("b"), "a").
		Add(nop("c"), "b")
	var ge *GraphError
	require.ErrorAs(t, g.Validate(), &ge)
	require.Equal(t, ErrKindCycle, ge.Kind)
	require.Equal(t, ge.Path[0], ge.Path[len(ge.Path)-1])
	require.Len(t, ge.Path, 4)
	require.Contains(t, ge.Error(), "->")
}

func TestGraphOrderIsTopological(t *testing.T) {
	g := NewGraph().
		Add(nop("clean")).
		Add(nop("html"), "clean").
		Add(nop("fonts"), "clean").
		Add(nop("fonts-style"), "fonts").
		Add(nop("styles"), "fonts-style")
	order, err := g.Order()
	require.NoError(t, err)
	require.Equal(t, []string{"clean", "html", "fonts", "fonts-style", "styles"}, order)
}

func TestGraphSubgraphAndOnly(t *testing.T) {
	g := NewGraph().
		Add(nop("clean")).
		Add(nop("fonts"), "clean").
		Add(nop("fonts-style"), "fonts").
		Add(nop("html"), "clean")

	sub, err := g.Subgraph("fonts-style")
	require.NoError(t, err)
	require.Equal(t, []string{"clean", "fonts", "fonts-style"}, sub.Names())

	only, err := g.Only("fonts-style", "fonts")
	require.NoError(t, err)
	require.Equal(t, []string{"fonts", "fonts-style"}, only.Names())
	n, _ := only.Get("fonts")
	require.Empty(t, n.Deps)
	require.NoError(t, only.Validate())

	_, err = g.Only("nope")
	require.Error(t, err)
	_, err = g.Subgraph("nope")
	require.Error(t, err)
}

func TestRenderFormats(t *testing.T) {
	g := NewGraph().Add(nop("rev")).Add(nop("rev-rewrite"), "rev")

	text, err := Render("cache", g, FormatText)
	require.NoError(t, err)
	require.Contains(t, text, "[rev-rewrite]")
	require.Contains(t, text, "after: rev")

	mm, err := Render("cache", g, FormatMermaid)
	require.NoError(t, err)
	require.Contains(t, mm, "rev --> rev_rewrite")

	dot, err := Render("cache", g, FormatDOT)
	require.NoError(t, err)
	require.Contains(t, dot, `"rev" -> "rev-rewrite";`)

	js, err := Render("cache", g, FormatJSON)
	require.NoError(t, err)
	var doc struct {
		Task   string `json:"task"`
		Stages []struct {
			Name      string   `json:"name"`
			DependsOn []string `json:"depends_on"`
		} `json:"stages"`
	}
	require.NoError(t, json.Unmarshal([]byte(js), &doc))
	require.Equal(t, "cache", doc.Task)
	require.Equal(t, []string{"rev"}, doc.Stages[1].DependsOn)

	_, err = Render("cache", g, Format("svg"))
	require.Error(t, err)
}

func TestSequence(t *testing.T) {
	var calls []string
	mk := func(name string, err error) Stage {
		return Func(name, "", func(context.Context) error {
			calls = append(calls, name)
			return err
		})
	}
	boom := errors.New("boom")
	err := Sequence("fonts", "", mk("convert", nil), mk("style", boom), mk("never", nil)).Run(context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, "convert,style", strings.Join(calls, ","))
}
