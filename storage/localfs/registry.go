package localfs

import (
	"flag"
	"fmt"

	"xdao.co/overlay/storage"
	"xdao.co/overlay/storage/registry"
)

var flagDir string

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "localfs",
		Description: "Local filesystem store (flat directory, hash-named files)",
		Usage:       registry.UsageCLI | registry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagDir, "localfs-dir", "", "Store directory (for --backend=localfs)")
		},
		Open: func() (storage.Store, func() error, error) {
			if flagDir == "" {
				return nil, nil, fmt.Errorf("missing --localfs-dir")
			}
			s, err := New(flagDir)
			if err != nil {
				return nil, nil, err
			}
			return s, nil, nil
		},
	})
}
