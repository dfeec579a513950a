package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Format is a graph rendering format.
type Format string

const (
	FormatText    Format = "text"
	FormatMermaid Format = "mermaid"
	FormatDOT     Format = "dot"
	FormatJSON    Format = "json"
)

// Formats lists the supported rendering formats.
func Formats() []Format {
	return []Format{FormatText, FormatMermaid, FormatDOT, FormatJSON}
}

// Render draws g in the requested format.
func Render(task string, g *Graph, format Format) (string, error) {
	order, err := g.Order()
	if err != nil {
		return "", err
	}
	switch format {
	case FormatText:
		return renderText(task, g, order), nil
	case FormatMermaid:
		return renderMermaid(g, order), nil
	case FormatDOT:
		return renderDOT(task, g, order), nil
	case FormatJSON:
		return renderJSON(task, g, order)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func renderText(task string, g *Graph, order []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task %s\n", task)
	for i, name := range order {
		n, _ := g.Get(name)
		prefix := "├──"
		if i == len(order)-1 {
			prefix = "└──"
		}
		fmt.Fprintf(&sb, "%s [%s] %s\n", prefix, name, n.Stage.Description())
		if len(n.Deps) > 0 {
			connector := "│  "
			if i == len(order)-1 {
				connector = "   "
			}
			fmt.Fprintf(&sb, "%s   ⤷ after: %s\n", connector, strings.Join(n.Deps, ", "))
		}
	}
	fmt.Fprintf(&sb, "\nTotal: %d stages\n", len(order))
	return sb.String()
}

func mermaidID(name string) string {
	return strings.NewReplacer("-", "_", " ", "_").Replace(name)
}

func renderMermaid(g *Graph, order []string) string {
	var sb strings.Builder
	sb.WriteString("```mermaid\ngraph TD\n")
	for _, name := range order {
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", mermaidID(name), name)
	}
	for _, name := range order {
		n, _ := g.Get(name)
		for _, d := range n.Deps {
			fmt.Fprintf(&sb, "    %s --> %s\n", mermaidID(d), mermaidID(name))
		}
	}
	sb.WriteString("```\n")
	return sb.String()
}

func renderDOT(task string, g *Graph, order []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph %q {\n", task)
	sb.WriteString("    rankdir=LR;\n")
	sb.WriteString("    node [shape=box, style=rounded];\n\n")
	for _, name := range order {
		fmt.Fprintf(&sb, "    %q;\n", name)
	}
	sb.WriteString("\n")
	for _, name := range order {
		n, _ := g.Get(name)
		for _, d := range n.Deps {
			fmt.Fprintf(&sb, "    %q -> %q;\n", d, name)
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

type jsonStage struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	DependsOn   []string `json:"depends_on"`
}

func renderJSON(task string, g *Graph, order []string) (string, error) {
	doc := struct {
		Task   string      `json:"task"`
		Stages []jsonStage `json:"stages"`
	}{Task: task}
	for _, name := range order {
		n, _ := g.Get(name)
		deps := n.Deps
		if deps == nil {
			deps = []string{}
		}
		doc.Stages = append(doc.Stages, jsonStage{Name: name, Description: n.Stage.Description(), DependsOn: deps})
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
