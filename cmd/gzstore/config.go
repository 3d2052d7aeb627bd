package main

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/ndlib/gzstore/catalog"
	"github.com/ndlib/gzstore/resource"
)

// config is the layout of the configuration file. An example:
//
//	port = "15000"
//	prefix = "res"
//	database = "/var/lib/gzstore/index.ql"
//	tokens = "/etc/gzstore/tokens"
//
//	[[collection]]
//	name = "images"
//	storage = "gz:/var/lib/gzstore/images"
//	level = 9
//
//	[[collection]]
//	name = "docs"
//	storage = "s3:/bucket/docs"
//	target = "static:/srv/www/docs|https://static.example.org/docs"
type config struct {
	Port       string `toml:"port"`
	PProfPort  string `toml:"pprof_port"`
	Prefix     string `toml:"prefix"`
	MySQL      string `toml:"mysql"`    // dial string. overrides database
	Database   string `toml:"database"` // path of QL database or "memory"
	SentryDSN  string `toml:"sentry_dsn"`
	Tokens     string `toml:"tokens"` // path of token file
	TempDir    string `toml:"temp_dir"`
	MaxImports int    `toml:"max_imports"`

	Collection []collectionConfig `toml:"collection"`
}

type collectionConfig struct {
	Name    string `toml:"name"`
	Storage string `toml:"storage"`
	Level   int    `toml:"level"`
	Target  string `toml:"target"`
}

func loadConfig(path string) (*config, error) {
	var c config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return nil, err
	}
	return &c, c.check()
}

func parseConfig(data string) (*config, error) {
	var c config
	if _, err := toml.Decode(data, &c); err != nil {
		return nil, err
	}
	return &c, c.check()
}

func (c *config) check() error {
	if c.Prefix == "" {
		c.Prefix = "res"
	}
	if c.Database == "" {
		c.Database = "memory"
	}
	if len(c.Collection) == 0 {
		return fmt.Errorf("no collections configured")
	}
	seen := make(map[string]bool)
	for _, cc := range c.Collection {
		if cc.Name == "" {
			return fmt.Errorf("collection without a name")
		}
		if seen[cc.Name] {
			return fmt.Errorf("collection %s given twice", cc.Name)
		}
		seen[cc.Name] = true
	}
	return nil
}

// openIndex opens the resource index named by the configuration.
func (c *config) openIndex() (catalog.Index, error) {
	if c.MySQL != "" {
		return catalog.NewMysqlIndex(c.MySQL)
	}
	return catalog.NewQlIndex(c.Database)
}

// collections builds every configured collection.
func (c *config) collections() ([]*resource.Collection, error) {
	var result []*resource.Collection
	for _, cc := range c.Collection {
		s, err := parselocation(cc.Storage, cc.Level)
		if err != nil {
			return nil, fmt.Errorf("collection %s: %w", cc.Name, err)
		}
		t, err := parsetarget(cc.Name, cc.Target, c.Prefix)
		if err != nil {
			return nil, fmt.Errorf("collection %s: %w", cc.Name, err)
		}
		result = append(result, &resource.Collection{
			Name:    cc.Name,
			Storage: s,
			Target:  t,
		})
	}
	return result, nil
}
