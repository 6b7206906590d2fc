package serialization

import (
	"sort"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/meftunca/rmqcluster/pkg/config"
	"github.com/meftunca/rmqcluster/pkg/json"
	"github.com/meftunca/rmqcluster/pkg/types"
)

// Codec encodes values to bytes and back
type Codec interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error

	// Name returns the codec name
	Name() config.SerializationType

	// ContentType returns the MIME content type
	ContentType() string
}

// CodecFactory holds one codec per serialization type. Stored records carry
// the name of the codec that wrote them, so a reader needs all of them.
type CodecFactory struct {
	codecs map[config.SerializationType]Codec
	mutex  sync.RWMutex
}

// NewCodecFactory creates a new codec factory
func NewCodecFactory() *CodecFactory {
	return &CodecFactory{
		codecs: make(map[config.SerializationType]Codec),
	}
}

// NewDefaultCodecFactory creates a factory with every built-in codec registered
func NewDefaultCodecFactory(jsonCfg config.JSONConfig) (*CodecFactory, error) {
	f := NewCodecFactory()
	if err := f.InitializeDefaultCodecs(jsonCfg); err != nil {
		return nil, err
	}
	return f, nil
}

// RegisterCodec registers a codec under its name
func (f *CodecFactory) RegisterCodec(codec Codec) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.codecs[codec.Name()] = codec
}

// GetCodec returns a codec for the specified serialization type
func (f *CodecFactory) GetCodec(serType config.SerializationType) (Codec, error) {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	codec, exists := f.codecs[serType]
	if !exists {
		return nil, types.NewClusterError(types.ErrCodeSerializationError, "unsupported serialization type").
			WithDetail("type", serType)
	}

	return codec, nil
}

// GetAvailableCodecs returns all registered codec types, sorted
func (f *CodecFactory) GetAvailableCodecs() []config.SerializationType {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	out := make([]config.SerializationType, 0, len(f.codecs))
	for serType := range f.codecs {
		out = append(out, serType)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// InitializeDefaultCodecs registers the cbor, json and msgpack codecs
func (f *CodecFactory) InitializeDefaultCodecs(jsonCfg config.JSONConfig) error {
	cborCodec, err := NewCBORCodec()
	if err != nil {
		return err
	}
	f.RegisterCodec(cborCodec)

	jsonCodec, err := NewJSONCodec(jsonCfg)
	if err != nil {
		return err
	}
	f.RegisterCodec(jsonCodec)

	f.RegisterCodec(NewMsgPackCodec())

	return nil
}

// CBORCodec implements CBOR serialization
type CBORCodec struct {
	encMode cbor.EncMode
	decMode cbor.DecMode
}

// NewCBORCodec creates a CBOR codec. Encoding is canonical and times keep
// their nanoseconds, so equal records encode to equal bytes.
func NewCBORCodec() (*CBORCodec, error) {
	encOpts := cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		Time:        cbor.TimeRFC3339Nano,
		TimeTag:     cbor.EncTagNone,
		IndefLength: cbor.IndefLengthForbidden,
	}

	decOpts := cbor.DecOptions{
		TimeTag:     cbor.DecTagIgnored,
		IndefLength: cbor.IndefLengthForbidden,
	}

	encMode, err := encOpts.EncMode()
	if err != nil {
		return nil, types.ErrSerializationError("cbor", err)
	}

	decMode, err := decOpts.DecMode()
	if err != nil {
		return nil, types.ErrSerializationError("cbor", err)
	}

	return &CBORCodec{
		encMode: encMode,
		decMode: decMode,
	}, nil
}

func (c *CBORCodec) Marshal(v interface{}) ([]byte, error) {
	data, err := c.encMode.Marshal(v)
	if err != nil {
		return nil, types.ErrSerializationError("cbor", err)
	}
	return data, nil
}

func (c *CBORCodec) Unmarshal(data []byte, v interface{}) error {
	if err := c.decMode.Unmarshal(data, v); err != nil {
		return types.ErrDeserializationError("cbor", err)
	}
	return nil
}

func (c *CBORCodec) Name() config.SerializationType {
	return config.SerializationCBOR
}

func (c *CBORCodec) ContentType() string {
	return "application/cbor"
}

// JSONCodec implements JSON serialization on top of the configured library
type JSONCodec struct {
	enc json.Encoder
}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec(cfg config.JSONConfig) (*JSONCodec, error) {
	enc, err := json.New(json.Config{
		Library:    json.Library(cfg.Library),
		Indent:     !cfg.Compact,
		EscapeHTML: cfg.EscapeHTML,
	})
	if err != nil {
		return nil, types.ErrSerializationError("json", err)
	}
	return &JSONCodec{enc: enc}, nil
}

func (j *JSONCodec) Marshal(v interface{}) ([]byte, error) {
	data, err := j.enc.Marshal(v)
	if err != nil {
		return nil, types.ErrSerializationError("json", err)
	}
	return data, nil
}

func (j *JSONCodec) Unmarshal(data []byte, v interface{}) error {
	if err := j.enc.Unmarshal(data, v); err != nil {
		return types.ErrDeserializationError("json", err)
	}
	return nil
}

func (j *JSONCodec) Name() config.SerializationType {
	return config.SerializationJSON
}

func (j *JSONCodec) ContentType() string {
	return "application/json"
}

// MsgPackCodec implements MessagePack serialization
type MsgPackCodec struct{}

// NewMsgPackCodec creates a new MessagePack codec
func NewMsgPackCodec() *MsgPackCodec {
	return &MsgPackCodec{}
}

func (m *MsgPackCodec) Marshal(v interface{}) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, types.ErrSerializationError("msgpack", err)
	}
	return data, nil
}

func (m *MsgPackCodec) Unmarshal(data []byte, v interface{}) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return types.ErrDeserializationError("msgpack", err)
	}
	return nil
}

func (m *MsgPackCodec) Name() config.SerializationType {
	return config.SerializationMsgPack
}

func (m *MsgPackCodec) ContentType() string {
	return "application/msgpack"
}
