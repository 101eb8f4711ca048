package cacheinfra

import (
	"bytes"
	"fmt"
	"io"

	"github.com/goliatone/go-dataset-cache/cache"
	"github.com/vmihailenco/msgpack/v5"
)

const recordVersion = 1

// recordHeader precedes the payload in every persisted record so the key can
// be recovered, and checked, without decoding the payload.
type recordHeader struct {
	Version  int               `msgpack:"v"`
	Entity   cache.EntityType  `msgpack:"e"`
	Datasets []cache.DatasetID `msgpack:"d"`
}

func writeRecord(w io.Writer, key cache.CacheKey, payload []byte) error {
	enc := msgpack.NewEncoder(w)
	header := recordHeader{
		Version:  recordVersion,
		Entity:   key.EntityType(),
		Datasets: key.Datasets(),
	}
	if err := enc.Encode(&header); err != nil {
		return fmt.Errorf("encode record header: %w", err)
	}
	if err := enc.EncodeBytes(payload); err != nil {
		return fmt.Errorf("encode record payload: %w", err)
	}
	return nil
}

func marshalRecord(key cache.CacheKey, payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeRecord(&buf, key, payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readHeader(dec *msgpack.Decoder) (cache.CacheKey, error) {
	var header recordHeader
	if err := dec.Decode(&header); err != nil {
		return cache.CacheKey{}, fmt.Errorf("decode record header: %w", err)
	}
	if header.Version != recordVersion {
		return cache.CacheKey{}, fmt.Errorf("unsupported record version %d", header.Version)
	}
	return cache.NewCacheKey(header.Entity, header.Datasets...)
}

// readRecordKey decodes only the header of a record.
func readRecordKey(r io.Reader) (cache.CacheKey, error) {
	return readHeader(msgpack.NewDecoder(r))
}

func readRecord(r io.Reader) (cache.CacheKey, []byte, error) {
	dec := msgpack.NewDecoder(r)
	key, err := readHeader(dec)
	if err != nil {
		return cache.CacheKey{}, nil, err
	}
	payload, err := dec.DecodeBytes()
	if err != nil {
		return cache.CacheKey{}, nil, fmt.Errorf("decode record payload: %w", err)
	}
	return key, payload, nil
}
