// Package tasks declares the named entry points as stage graphs.
package tasks

import (
	"fmt"

	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
	"git.home.luguber.info/inful/assetpipe/internal/stages"
)

// Task names.
const (
	Dev     = "dev"
	Build   = "build"
	Cache   = "cache"
	Release = "release"
)

// Names lists the tasks in declaration order.
func Names() []string { return []string{Dev, Build, Cache, Release} }

// IsDev reports whether task uses the development stage variants.
func IsDev(task string) bool { return task == Dev }

// producers run concurrently right after clean. Their destination
// sub-paths are disjoint.
var producers = []string{
	stages.HTML,
	stages.Scripts,
	stages.Fonts,
	stages.Images,
	stages.Sprites,
	stages.Resources,
}

// Graph returns the stage graph for task. The dev graph covers the initial
// build only; watching and serving follow it.
func Graph(task string, set *stages.Set) (*pipeline.Graph, error) {
	switch task {
	case Dev:
		return front(set), nil
	case Build:
		return production(front(set), set), nil
	case Cache:
		return cache(pipeline.NewGraph(), set), nil
	case Release:
		g := production(front(set), set)
		return cache(g, set, stages.HTMLMinify), nil
	default:
		return nil, fmt.Errorf("unknown task %q (valid: %v)", task, Names())
	}
}

// front is clean -> producers -> fonts-style -> styles.
func front(set *stages.Set) *pipeline.Graph {
	g := pipeline.NewGraph().Add(set.MustStage(stages.Clean))
	for _, name := range producers {
		g.Add(set.MustStage(name), stages.Clean)
	}
	g.Add(set.MustStage(stages.FontsStyle), producers...)
	g.Add(set.MustStage(stages.Styles), stages.FontsStyle)
	return g
}

// production appends compress-images -> html-minify after styles.
// compress-images rewrites what images copied, so it must follow it.
func production(g *pipeline.Graph, set *stages.Set) *pipeline.Graph {
	g.Add(set.MustStage(stages.CompressImages), stages.Styles, stages.Images)
	g.Add(set.MustStage(stages.HTMLMinify), stages.CompressImages, stages.HTML)
	return g
}

// cache appends rev -> rev-rewrite, rev depending on after.
func cache(g *pipeline.Graph, set *stages.Set, after ...string) *pipeline.Graph {
	g.Add(set.MustStage(stages.Rev), after...)
	g.Add(set.MustStage(stages.RevRewrite), stages.Rev)
	return g
}
