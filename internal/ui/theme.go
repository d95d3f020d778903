package ui

// Theme holds the resolved color palette as hex strings.
type Theme struct {
	Foreground string
	Accent     string
	Dim        string
	Red        string
	Green      string
	Yellow     string
	Blue       string
	Border     string
	Header     string
}

// T is the active theme. Use Apply to change it.
var T = DefaultTheme()

// DefaultTheme returns the built-in theme.
func DefaultTheme() Theme {
	return Theme{
		Foreground: "#e5e7eb",
		Accent:     "#8b5cf6",
		Dim:        "#6b7280",
		Red:        "#ef4444",
		Green:      "#22c55e",
		Yellow:     "#eab308",
		Blue:       "#3b82f6",
		Border:     "#374151",
		Header:     "#f9fafb",
	}
}

// Merge returns t with every non-empty color of o applied on top.
func (t Theme) Merge(o Theme) Theme {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&t.Foreground, o.Foreground)
	set(&t.Accent, o.Accent)
	set(&t.Dim, o.Dim)
	set(&t.Red, o.Red)
	set(&t.Green, o.Green)
	set(&t.Yellow, o.Yellow)
	set(&t.Blue, o.Blue)
	set(&t.Border, o.Border)
	set(&t.Header, o.Header)
	return t
}

// Apply makes t the active theme and rebuilds the shared styles.
func Apply(t Theme) {
	T = t
	buildStyles()
}
