package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meftunca/rmqcluster/pkg/config"
)

func storageConfig(ser config.SerializationType, comp config.CompressionType) config.StorageConfig {
	return config.StorageConfig{
		Serialization: ser,
		Compression: config.CompressionConfig{
			Type:           comp,
			ThresholdBytes: 256,
		},
		JSON: config.JSONConfig{Library: "standard", Compact: true},
	}
}

// asStrings mimics what HGETALL hands back.
func asStrings(fields map[string]interface{}) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		switch v := v.(type) {
		case string:
			out[k] = v
		case []byte:
			out[k] = string(v)
		}
	}
	return out
}

func TestEnvelope_Formats(t *testing.T) {
	rec := sampleRun(t, time.Date(2026, 10, 1, 12, 0, 0, 123456789, time.UTC), 40)

	for _, ser := range []config.SerializationType{config.SerializationCBOR, config.SerializationJSON, config.SerializationMsgPack} {
		for _, comp := range []config.CompressionType{config.CompressionNone, config.CompressionZstd, config.CompressionLZ4, config.CompressionSnappy, config.CompressionGzip, config.CompressionBrotli} {
			t.Run(string(ser)+"/"+string(comp), func(t *testing.T) {
				env, err := newEnvelope(storageConfig(ser, comp))
				require.NoError(t, err)

				fields, err := env.encode(rec)
				require.NoError(t, err)
				assert.Equal(t, string(ser), fields[fieldCodec])
				assert.Equal(t, string(comp), fields[fieldCompression])

				got, err := env.decode(asStrings(fields))
				require.NoError(t, err)
				assert.Equal(t, rec, got)
			})
		}
	}
}

func TestEnvelope_ShortTranscriptIsNotCompressed(t *testing.T) {
	env, err := newEnvelope(storageConfig(config.SerializationCBOR, config.CompressionZstd))
	require.NoError(t, err)

	fields, err := env.encode(sampleRun(t, time.Now(), 0))
	require.NoError(t, err)
	assert.Equal(t, string(config.CompressionNone), fields[fieldCompression])
}

func TestEnvelope_ReadsOlderFormats(t *testing.T) {
	rec := sampleRun(t, time.Now(), 10)

	writer, err := newEnvelope(storageConfig(config.SerializationMsgPack, config.CompressionGzip))
	require.NoError(t, err)
	fields, err := writer.encode(rec)
	require.NoError(t, err)

	reader, err := newEnvelope(storageConfig(config.SerializationJSON, config.CompressionLZ4))
	require.NoError(t, err)

	got, err := reader.decode(asStrings(fields))
	require.NoError(t, err)
	assert.Equal(t, rec.Transcript, got.Transcript)

	summary, err := reader.decodeSummary(asStrings(fields))
	require.NoError(t, err)
	assert.Equal(t, rec.Summary(), summary)
}

func TestNewEnvelope_UnknownFormat(t *testing.T) {
	_, err := newEnvelope(storageConfig("avro", config.CompressionNone))
	assert.Error(t, err)

	_, err = newEnvelope(storageConfig(config.SerializationCBOR, "xz"))
	assert.Error(t, err)
}
