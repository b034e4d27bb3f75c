package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kwonwoo078/presto/pkg/models/storeerror"
	"github.com/kwonwoo078/presto/pkg/models/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConnectorCfgFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "connector.yaml",
			content: `
connector_id: warehouse
qdb_type: etcd
qdb_addr: ["localhost:2379"]
qdb_dial_timeout: 2s
node_source: etcd
default_batch_size: 50
`,
		},
		{
			name: "toml",
			file: "connector.toml",
			content: `
connector_id = "warehouse"
qdb_type = "etcd"
qdb_addr = ["localhost:2379"]
qdb_dial_timeout = "2s"
node_source = "etcd"
default_batch_size = 50
`,
		},
		{
			name: "json",
			file: "connector.json",
			content: `{
  "connector_id": "warehouse",
  "qdb_type": "etcd",
  "qdb_addr": ["localhost:2379"],
  "qdb_dial_timeout": "2s",
  "node_source": "etcd",
  "default_batch_size": 50
}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := LoadConnectorCfg(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			assert.Contains(t, out, `"connector_id": "warehouse"`)

			cfg := ConnectorConfig()
			assert.Equal(t, "warehouse", cfg.ConnectorID)
			assert.Equal(t, EtcdQDB, cfg.QdbType)
			assert.Equal(t, []string{"localhost:2379"}, cfg.QdbAddr)
			assert.Equal(t, 2*time.Second, cfg.QdbDialTimeout.Duration())
			assert.Equal(t, 50, cfg.DefaultBatchSize)
			assert.Equal(t, "info", cfg.LogLevel)
		})
	}
}

func TestLoadConnectorCfgUnknownSuffix(t *testing.T) {
	_, err := LoadConnectorCfg(writeFile(t, "connector.ini", "connector_id=x"))
	assert.Error(t, err)
}

func TestLoadConnectorCfgMissingFile(t *testing.T) {
	_, err := LoadConnectorCfg(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Connector)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Connector) {}},
		{name: "empty connector id", mutate: func(c *Connector) { c.ConnectorID = "" }, wantErr: true},
		{name: "unknown qdb", mutate: func(c *Connector) { c.QdbType = "zk" }, wantErr: true},
		{name: "etcd without address", mutate: func(c *Connector) { c.QdbType = EtcdQDB }, wantErr: true},
		{name: "postgres without dsn", mutate: func(c *Connector) { c.QdbType = PostgresQDB }, wantErr: true},
		{name: "postgres", mutate: func(c *Connector) {
			c.QdbType = PostgresQDB
			c.PostgresDSN = "postgres://localhost/shards"
		}},
		{name: "bad static node", mutate: func(c *Connector) {
			c.StaticNodes = []StaticNode{{ID: "a", Address: "nope"}}
		}, wantErr: true},
		{name: "register without etcd", mutate: func(c *Connector) {
			c.Register = &StaticNode{ID: "a", Address: "a:1"}
		}, wantErr: true},
		{name: "zero batch size", mutate: func(c *Connector) { c.DefaultBatchSize = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConnector()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.True(t, storeerror.HasCode(err, storeerror.STORE_INVALID_CONFIG), "err = %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseStaticNodes(t *testing.T) {
	c := DefaultConnector()
	c.StaticNodes = []StaticNode{
		{ID: "a", Address: "a.local:8080"},
		{ID: "b", Address: "b.local:8081"},
	}

	got, err := c.ParseStaticNodes()
	require.NoError(t, err)
	assert.Equal(t, []topology.Node{
		topology.NewNode("a", topology.NewHostAddress("a.local", 8080)),
		topology.NewNode("b", topology.NewHostAddress("b.local", 8081)),
	}, got)
}

func TestTLSConfigInit(t *testing.T) {
	var nilCfg *TLSConfig
	tlsCfg, err := nilCfg.Init("etcd")
	assert.NoError(t, err)
	assert.Nil(t, tlsCfg)

	tlsCfg, err = (&TLSConfig{SslMode: "verify-full"}).Init("etcd")
	require.NoError(t, err)
	assert.Equal(t, "etcd", tlsCfg.ServerName)

	tlsCfg, err = (&TLSConfig{SslMode: "require"}).Init("etcd")
	require.NoError(t, err)
	assert.True(t, tlsCfg.InsecureSkipVerify)

	_, err = (&TLSConfig{SslMode: "bogus"}).Init("etcd")
	assert.Error(t, err)

	_, err = (&TLSConfig{SslMode: "require", CertFile: "x.crt"}).Init("etcd")
	assert.Error(t, err)
}
