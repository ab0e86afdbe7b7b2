package cassandra

import (
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"

	"github.com/weiawesome/artisans-live/archive-service/internal/config"
)

func TestParseConsistency(t *testing.T) {
	assert.Equal(t, gocql.One, parseConsistency("one"))
	assert.Equal(t, gocql.Quorum, parseConsistency("QUORUM"))
	assert.Equal(t, gocql.LocalOne, parseConsistency("local_one"))
	assert.Equal(t, gocql.LocalQuorum, parseConsistency("bogus"))
}

func TestNewCluster(t *testing.T) {
	cluster := newCluster(config.CassandraConfig{
		Hosts:          []string{"db1:9042", "db2:9042"},
		Consistency:    "ONE",
		ConnectTimeout: 3 * time.Second,
		Timeout:        time.Second,
		NumConns:       4,
		Username:       "u",
		Password:       "p",
	}, "artisans")

	assert.Equal(t, []string{"db1:9042", "db2:9042"}, cluster.Hosts)
	assert.Equal(t, "artisans", cluster.Keyspace)
	assert.Equal(t, gocql.One, cluster.Consistency)
	assert.Equal(t, 4, cluster.NumConns)
	assert.IsType(t, gocql.PasswordAuthenticator{}, cluster.Authenticator)
}

func TestKeyspaceBootstrap(t *testing.T) {
	assert.True(t, validKeyspace("artisans"))
	assert.True(t, validKeyspace("collab_events_2"))
	assert.False(t, validKeyspace(""))
	assert.False(t, validKeyspace("9lives"))
	assert.False(t, validKeyspace("drop; table"))

	assert.Equal(t,
		"CREATE KEYSPACE IF NOT EXISTS artisans WITH replication = {'class': 'SimpleStrategy', 'replication_factor': 3}",
		createKeyspaceCQL("artisans", 3))
	assert.Contains(t, createKeyspaceCQL("artisans", 0), "'replication_factor': 1")
}
