package watch

import "git.home.luguber.info/inful/assetpipe/internal/stages"

// Binding ties source patterns to the stages rebuilt when they change.
type Binding struct {
	Name string
	// Patterns are doublestar globs relative to the source root.
	Patterns []string
	// Stages run in order; later stages depend on earlier ones.
	Stages []string
}

// DefaultBindings returns one binding per source category.
func DefaultBindings() []Binding {
	return []Binding{
		{Name: "styles", Patterns: []string{"scss/**/*.scss"}, Stages: []string{stages.Styles}},
		{Name: "html", Patterns: []string{"*.html", "html/*.html"}, Stages: []string{stages.HTML}},
		{Name: "images", Patterns: []string{"img/*.{jpg,jpeg,png}"}, Stages: []string{stages.Images}},
		{Name: "sprites", Patterns: []string{"img/svg/*.svg"}, Stages: []string{stages.Sprites}},
		{Name: "fonts", Patterns: []string{"fonts/*.ttf"}, Stages: []string{stages.Fonts, stages.FontsStyle}},
		{Name: "resources", Patterns: []string{"resources/**"}, Stages: []string{stages.Resources}},
		{Name: "scripts", Patterns: []string{"js/**/*.js"}, Stages: []string{stages.Scripts}},
	}
}
