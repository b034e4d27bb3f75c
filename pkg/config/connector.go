package config

import (
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/kwonwoo078/presto/pkg/models/storeerror"
	"github.com/kwonwoo078/presto/pkg/models/topology"
)

type QDBType string

const (
	MemQDB      = QDBType("mem")
	EtcdQDB     = QDBType("etcd")
	PostgresQDB = QDBType("postgres")
)

type NodeSourceType string

const (
	StaticNodes = NodeSourceType("static")
	EtcdNodes   = NodeSourceType("etcd")
)

type StaticNode struct {
	ID      string `json:"id" toml:"id" yaml:"id"`
	Address string `json:"address" toml:"address" yaml:"address"`
}

type Connector struct {
	LogLevel      string `json:"log_level" toml:"log_level" yaml:"log_level"`
	LogFile       string `json:"log_file" toml:"log_file" yaml:"log_file"`
	PrettyLogging bool   `json:"pretty_logging" toml:"pretty_logging" yaml:"pretty_logging"`

	ConnectorID string `json:"connector_id" toml:"connector_id" yaml:"connector_id"`

	QdbType        QDBType    `json:"qdb_type" toml:"qdb_type" yaml:"qdb_type"`
	QdbAddr        []string   `json:"qdb_addr" toml:"qdb_addr" yaml:"qdb_addr"`
	QdbTLS         *TLSConfig `json:"qdb_tls" toml:"qdb_tls" yaml:"qdb_tls"`
	QdbDialTimeout Duration   `json:"qdb_dial_timeout" toml:"qdb_dial_timeout" yaml:"qdb_dial_timeout"`
	PostgresDSN    string     `json:"postgres_dsn" toml:"postgres_dsn" yaml:"postgres_dsn"`
	MemQdbBackup   string     `json:"memqdb_backup_path" toml:"memqdb_backup_path" yaml:"memqdb_backup_path"`

	NodeSource  NodeSourceType `json:"node_source" toml:"node_source" yaml:"node_source"`
	StaticNodes []StaticNode   `json:"static_nodes" toml:"static_nodes" yaml:"static_nodes"`
	NodeLease   int64          `json:"node_lease_ttl" toml:"node_lease_ttl" yaml:"node_lease_ttl"`
	Register    *StaticNode    `json:"register" toml:"register" yaml:"register"`

	BackupDirectory string `json:"backup_directory" toml:"backup_directory" yaml:"backup_directory"`

	MetricsAddr      string `json:"metrics_addr" toml:"metrics_addr" yaml:"metrics_addr"`
	DefaultBatchSize int    `json:"default_batch_size" toml:"default_batch_size" yaml:"default_batch_size"`
}

var cfgConnector = DefaultConnector()

func DefaultConnector() Connector {
	return Connector{
		LogLevel:         "info",
		ConnectorID:      "shards",
		QdbType:          MemQDB,
		QdbDialTimeout:   Duration(5 * time.Second),
		NodeSource:       StaticNodes,
		MetricsAddr:      "localhost:7010",
		DefaultBatchSize: 1000,
	}
}

// LoadConnectorCfg loads the connector configuration from cfgPath over the
// defaults and validates it.
//
// Returns:
//   - string: JSON-formatted config
//   - error: An error if any occurred during the loading process.
func LoadConnectorCfg(cfgPath string) (string, error) {
	ccfg := DefaultConnector()
	file, err := os.Open(cfgPath)
	if err != nil {
		return "", err
	}
	defer func(file *os.File) {
		err := file.Close()
		if err != nil {
			log.Printf("failed to close config file: %v", err)
		}
	}(file)

	if err := initConfig(file, &ccfg); err != nil {
		return "", err
	}
	if err := ccfg.Validate(); err != nil {
		return "", err
	}
	cfgConnector = ccfg

	configBytes, err := json.MarshalIndent(&cfgConnector, "", "  ")
	if err != nil {
		return "", err
	}

	return string(configBytes), nil
}

// ConnectorConfig returns a pointer to the loaded connector configuration.
func ConnectorConfig() *Connector {
	return &cfgConnector
}

func (c *Connector) Validate() error {
	if c.ConnectorID == "" {
		return storeerror.New(storeerror.STORE_INVALID_CONFIG, "connector_id is required")
	}
	switch c.QdbType {
	case MemQDB:
	case EtcdQDB:
		if len(c.QdbAddr) == 0 {
			return storeerror.New(storeerror.STORE_INVALID_CONFIG, "qdb_addr is required for etcd qdb")
		}
	case PostgresQDB:
		if c.PostgresDSN == "" {
			return storeerror.New(storeerror.STORE_INVALID_CONFIG, "postgres_dsn is required for postgres qdb")
		}
	default:
		return storeerror.Newf(storeerror.STORE_INVALID_CONFIG, "qdb implementation %s is invalid", c.QdbType)
	}

	switch c.NodeSource {
	case StaticNodes:
		if _, err := c.ParseStaticNodes(); err != nil {
			return err
		}
	case EtcdNodes:
		if len(c.QdbAddr) == 0 {
			return storeerror.New(storeerror.STORE_INVALID_CONFIG, "qdb_addr is required for etcd node source")
		}
	default:
		return storeerror.Newf(storeerror.STORE_INVALID_CONFIG, "node source %s is invalid", c.NodeSource)
	}

	if c.Register != nil {
		if c.NodeSource != EtcdNodes {
			return storeerror.New(storeerror.STORE_INVALID_CONFIG, "register requires etcd node source")
		}
		if _, err := parseNode(*c.Register); err != nil {
			return err
		}
	}
	if c.DefaultBatchSize <= 0 {
		return storeerror.Newf(storeerror.STORE_INVALID_CONFIG, "default_batch_size must be positive, got %d", c.DefaultBatchSize)
	}
	return nil
}

func (c *Connector) ParseStaticNodes() ([]topology.Node, error) {
	ret := make([]topology.Node, 0, len(c.StaticNodes))
	for _, n := range c.StaticNodes {
		node, err := parseNode(n)
		if err != nil {
			return nil, err
		}
		ret = append(ret, node)
	}
	return ret, nil
}

func (c *Connector) RegisterNode() (topology.Node, error) {
	if c.Register == nil {
		return topology.Node{}, storeerror.New(storeerror.STORE_INVALID_CONFIG, "register is not configured")
	}
	return parseNode(*c.Register)
}

func parseNode(n StaticNode) (topology.Node, error) {
	if n.ID == "" {
		return topology.Node{}, storeerror.New(storeerror.STORE_INVALID_CONFIG, "node id is required")
	}
	addr, err := topology.ParseHostAddress(n.Address)
	if err != nil {
		return topology.Node{}, storeerror.Newf(storeerror.STORE_INVALID_CONFIG, "node %s: %s", n.ID, err)
	}
	return topology.NewNode(n.ID, addr), nil
}
