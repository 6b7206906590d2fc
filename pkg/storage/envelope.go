package storage

import (
	"github.com/meftunca/rmqcluster/pkg/compression"
	"github.com/meftunca/rmqcluster/pkg/config"
	"github.com/meftunca/rmqcluster/pkg/executor"
	"github.com/meftunca/rmqcluster/pkg/serialization"
)

// Hash fields of a stored run. The summary and the transcript are encoded
// separately so listings never have to decode or decompress transcripts.
const (
	fieldCodec       = "codec"
	fieldCompression = "compression"
	fieldSummary     = "summary"
	fieldTranscript  = "transcript"
)

// envelope converts run records to and from hash fields. Every record names
// the codec and compression it was written with, so changing either setting
// keeps older records readable.
type envelope struct {
	codecs      *serialization.CodecFactory
	compressors *compression.CompressorFactory

	codec      serialization.Codec
	compressor compression.Compressor
	threshold  int
}

func newEnvelope(cfg config.StorageConfig) (*envelope, error) {
	codecs, err := serialization.NewDefaultCodecFactory(cfg.JSON)
	if err != nil {
		return nil, err
	}
	compressors, err := compression.NewDefaultCompressorFactory(cfg.Compression.Level)
	if err != nil {
		return nil, err
	}

	codec, err := codecs.GetCodec(cfg.Serialization)
	if err != nil {
		return nil, err
	}
	compressor, err := compressors.GetCompressor(cfg.Compression.Type)
	if err != nil {
		return nil, err
	}

	return &envelope{
		codecs:      codecs,
		compressors: compressors,
		codec:       codec,
		compressor:  compressor,
		threshold:   cfg.Compression.ThresholdBytes,
	}, nil
}

func (e *envelope) encode(rec *RunRecord) (map[string]interface{}, error) {
	summary, err := e.codec.Marshal(rec.Summary())
	if err != nil {
		return nil, err
	}

	transcript, err := e.codec.Marshal(rec.Transcript)
	if err != nil {
		return nil, err
	}

	// Short transcripts are not worth the compression header.
	compressor := e.compressor
	if len(transcript) < e.threshold {
		compressor = compression.NoCompressor{}
	}
	transcript, err = compressor.Compress(transcript)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		fieldCodec:       string(e.codec.Name()),
		fieldCompression: string(compressor.Name()),
		fieldSummary:     summary,
		fieldTranscript:  transcript,
	}, nil
}

func (e *envelope) decodeSummary(fields map[string]string) (*RunRecord, error) {
	codec, err := e.codecs.GetCodec(config.SerializationType(fields[fieldCodec]))
	if err != nil {
		return nil, err
	}

	var rec RunRecord
	if err := codec.Unmarshal([]byte(fields[fieldSummary]), &rec); err != nil {
		return nil, err
	}
	rec.Transcript = nil
	rec.normalize()
	return &rec, nil
}

func (e *envelope) decode(fields map[string]string) (*RunRecord, error) {
	rec, err := e.decodeSummary(fields)
	if err != nil {
		return nil, err
	}

	compressor, err := e.compressors.GetCompressor(config.CompressionType(fields[fieldCompression]))
	if err != nil {
		return nil, err
	}
	raw, err := compressor.Decompress([]byte(fields[fieldTranscript]))
	if err != nil {
		return nil, err
	}

	codec, _ := e.codecs.GetCodec(config.SerializationType(fields[fieldCodec]))
	var transcript []executor.CommandRecord
	if err := codec.Unmarshal(raw, &transcript); err != nil {
		return nil, err
	}
	rec.Transcript = transcript
	rec.normalize()
	return rec, nil
}
