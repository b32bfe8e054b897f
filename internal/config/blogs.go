package config

import (
	"fmt"
	"os"

	"blogpulse/internal/models"

	"gopkg.in/yaml.v3"
)

// registry mirrors the blog list file:
//
//	blogs:
//	  - name: Example Engineering
//	    url: https://example.com/blog
//	    category: engineering
type registry struct {
	Blogs []models.Blog `yaml:"blogs"`
}

// LoadBlogs reads the watched-blog registry. Entries without a URL are
// rejected; a missing category defaults to "general".
func LoadBlogs(path string) ([]models.Blog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read blog registry %s: %w", path, err)
	}

	var reg registry
	if err = yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse blog registry %s: %w", path, err)
	}

	for i := range reg.Blogs {
		if reg.Blogs[i].URL == "" {
			return nil, fmt.Errorf("blog registry %s: entry %d has no url", path, i)
		}
		if reg.Blogs[i].Name == "" {
			reg.Blogs[i].Name = reg.Blogs[i].URL
		}
		if reg.Blogs[i].Category == "" {
			reg.Blogs[i].Category = "general"
		}
	}

	return reg.Blogs, nil
}
