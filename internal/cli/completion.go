package cli

import (
	"os"

	"github.com/posener/complete"
	"github.com/willabides/kongplete"

	"github.com/semmy-space/kstore/internal/config"
	"github.com/semmy-space/kstore/internal/paths"
)

// Predictors returns the completion predictors named by predictor tags.
// They read the config named by KSTORE_CONFIG, or the default one.
func Predictors() []kongplete.Option {
	return []kongplete.Option{
		kongplete.WithPredictor("store", complete.PredictFunc(func(complete.Args) []string {
			return storeNames(completionConfig())
		})),
		kongplete.WithPredictor("path", complete.PredictFunc(func(complete.Args) []string {
			return pathNames(completionConfig())
		})),
	}
}

func completionConfig() *config.Config {
	path := os.Getenv("KSTORE_CONFIG")
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil
	}
	return cfg
}

func storeNames(cfg *config.Config) []string {
	if cfg == nil {
		return nil
	}
	return cfg.StoreNames()
}

// pathNames lists the named directories a store can be relative to
func pathNames(cfg *config.Config) []string {
	r := paths.NewDefaultRegistry()
	if cfg != nil {
		for name, dir := range cfg.Paths {
			r.Define(name, dir)
		}
	}
	return r.Names()
}
