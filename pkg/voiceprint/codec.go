package voiceprint

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes the profile set stored in the kv slot.
type Codec interface {
	Name() string
	Marshal(profiles []Profile) ([]byte, error)
	Unmarshal(data []byte) ([]Profile, error)
}

// JSON is the default codec: a plain JSON array of profile objects.
var JSON Codec = jsonCodec{}

// Msgpack stores the same records as a msgpack array.
var Msgpack Codec = msgpackCodec{}

// CodecByName returns the codec registered under name ("json" or
// "msgpack"). An empty name selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return Msgpack, nil
	}
	return nil, fmt.Errorf("voiceprint: unknown codec %q", name)
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(profiles []Profile) ([]byte, error) {
	if profiles == nil {
		profiles = []Profile{}
	}
	return json.Marshal(profiles)
}

func (jsonCodec) Unmarshal(data []byte) ([]Profile, error) {
	var profiles []Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }

func (msgpackCodec) Marshal(profiles []Profile) ([]byte, error) {
	if profiles == nil {
		profiles = []Profile{}
	}
	return msgpack.Marshal(profiles)
}

func (msgpackCodec) Unmarshal(data []byte) ([]Profile, error) {
	var profiles []Profile
	if err := msgpack.Unmarshal(data, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}
