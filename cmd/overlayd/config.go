package main

import (
	"encoding/json"
	"fmt"
	"os"

	"xdao.co/overlay/storage/storeconfig"
)

// nodeConfig is the optional JSON file passed with --config. Flags given on
// the command line win over file values.
//
//	{
//	  "listen": "0.0.0.0:7777",
//	  "rpc_listen": "tcp://0.0.0.0:7778",
//	  "metrics_listen": "127.0.0.1:9100",
//	  "key": "node",
//	  "key_alg": "dilithium3+sha3-256",
//	  "store": {"backends": [{"name": "localfs", "config": {"localfs-dir": "/var/lib/overlay"}}]}
//	}
type nodeConfig struct {
	Listen        string              `json:"listen,omitempty"`
	RPCListen     string              `json:"rpc_listen,omitempty"`
	MetricsListen string              `json:"metrics_listen,omitempty"`
	KeyDir        string              `json:"key_dir,omitempty"`
	Key           string              `json:"key,omitempty"`
	KeyAlg        string              `json:"key_alg,omitempty"`
	Store         *storeconfig.Config `json:"store,omitempty"`
}

func loadNodeConfig(path string) (nodeConfig, error) {
	var c nodeConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("node config %s: %w", path, err)
	}
	if c.Store != nil {
		if err := c.Store.Validate(); err != nil {
			return c, fmt.Errorf("node config %s: %w", path, err)
		}
	}
	return c, nil
}

type options struct {
	listen        string
	rpcListen     string
	metricsListen string
	backend       string
	storeConfig   string
	keyDir        string
	key           string
	keyAlg        string

	store *storeconfig.Config
}

// merge fills options from c, skipping flags present in set.
func (o *options) merge(c nodeConfig, set map[string]bool) {
	pick := func(flagName string, dst *string, v string) {
		if v != "" && !set[flagName] {
			*dst = v
		}
	}
	pick("listen", &o.listen, c.Listen)
	pick("rpc-listen", &o.rpcListen, c.RPCListen)
	pick("metrics-listen", &o.metricsListen, c.MetricsListen)
	pick("key-dir", &o.keyDir, c.KeyDir)
	pick("key", &o.key, c.Key)
	pick("key-alg", &o.keyAlg, c.KeyAlg)
	if c.Store != nil && !set["store-config"] && !set["backend"] {
		o.store = c.Store
	}
}
