// Package pages holds the built-in pages of the application. The markup is
// in the .templ files; run `templ generate` after editing them.
package pages

// Site carries what the page chrome shows.
type Site struct {
	Name       string
	AdminName  string
	AdminEmail string
}
