package transform

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/telemetry.replay/internal/fsutil"
)

// ChannelFile is the structure of a channel definition file.
type ChannelFile struct {
	Channels []Channel `yaml:"channels"`
}

// explicitScales mirrors ChannelFile with scale presence preserved.
type explicitScales struct {
	Channels []struct {
		StreamID string `yaml:"stream_id"`
		Fields   []struct {
			Name  string   `yaml:"name"`
			Scale *float64 `yaml:"scale"`
		} `yaml:"fields"`
	} `yaml:"channels"`
}

// LoadChannels parses a YAML channel definition. Unknown keys are an error
// so that a misspelt option is not silently ignored. An omitted scale is 1;
// an explicit scale of 0 is rejected.
func LoadChannels(r io.Reader) ([]Channel, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read channel file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg ChannelFile
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("channel file is empty")
		}
		return nil, fmt.Errorf("failed to parse channel file: %w", err)
	}
	if err := checkScales(data); err != nil {
		return nil, err
	}
	if err := Validate(cfg.Channels); err != nil {
		return nil, err
	}
	return cfg.Channels, nil
}

func checkScales(data []byte) error {
	var doc explicitScales
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse channel file: %w", err)
	}
	for _, ch := range doc.Channels {
		for _, f := range ch.Fields {
			if f.Scale != nil && *f.Scale == 0 {
				return fmt.Errorf("channel %s: field %s: scale must not be 0 (omit it for 1)", ch.StreamID, f.Name)
			}
		}
	}
	return nil
}

// LoadChannelsFile reads a channel definition file from fsys.
func LoadChannelsFile(fsys fsutil.FileSystem, path string) ([]Channel, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open channel file: %w", err)
	}
	defer f.Close()
	channels, err := LoadChannels(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return channels, nil
}

// MarshalChannels renders a channel set in the file format.
func MarshalChannels(channels []Channel) ([]byte, error) {
	return yaml.Marshal(ChannelFile{Channels: channels})
}
