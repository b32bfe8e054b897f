package models

// Blog is one entry of the watched-blog registry.
type Blog struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
}
