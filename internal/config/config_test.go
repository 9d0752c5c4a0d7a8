package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseZones(t *testing.T) {
	zones := parseZones("Kathmandu=100, lalitpur =120,bad,neg=-5,empty=")
	assert.Equal(t, map[string]int64{"kathmandu": 100, "lalitpur": 120}, zones)
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, splitCSV("kafka-1:9092, kafka-2:9092,"))
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, int64(150), cfg.ShippingFlatCents)
	assert.NotEmpty(t, cfg.KafkaBrokers)
}
