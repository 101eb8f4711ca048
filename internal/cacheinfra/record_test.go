package cacheinfra

import (
	"bytes"
	"testing"

	"github.com/goliatone/go-dataset-cache/cache"
	"github.com/vmihailenco/msgpack/v5"
)

func TestRecord_HeaderOnly(t *testing.T) {
	key, err := cache.NewCacheKey("Lab", detect7, acuity3)
	if err != nil {
		t.Fatal(err)
	}

	data, err := marshalRecord(key, bytes.Repeat([]byte("x"), 4096))
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}

	got, err := readRecordKey(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected header error: %v", err)
	}
	if !got.Equal(key) {
		t.Errorf("expected key %s, got %s", key, got)
	}
}

func TestRecord_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header recordHeader
	}{
		{
			name:   "unknown version",
			header: recordHeader{Version: recordVersion + 1, Entity: "Lab", Datasets: []cache.DatasetID{acuity1}},
		},
		{
			name:   "empty entity",
			header: recordHeader{Version: recordVersion, Datasets: []cache.DatasetID{acuity1}},
		},
		{
			name:   "empty selection",
			header: recordHeader{Version: recordVersion, Entity: "Lab"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			enc := msgpack.NewEncoder(&buf)
			if err := enc.Encode(&tt.header); err != nil {
				t.Fatal(err)
			}
			if err := enc.EncodeBytes([]byte("payload")); err != nil {
				t.Fatal(err)
			}

			if _, _, err := readRecord(&buf); err == nil {
				t.Error("expected record to be rejected")
			}
		})
	}
}

func TestRecord_Truncated(t *testing.T) {
	key, err := cache.NewCacheKey("Subject", acuity42)
	if err != nil {
		t.Fatal(err)
	}
	data, err := marshalRecord(key, []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := readRecord(bytes.NewReader(data[:len(data)-3])); err == nil {
		t.Error("expected truncated record to fail")
	}
}
