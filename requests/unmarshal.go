package requests

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/brettbedarf/clifs"
	"github.com/brettbedarf/clifs/adapters"
	"github.com/brettbedarf/clifs/config"
)

var validate = validator.New()

// Defaults are applied to request fields the document leaves unset
type Defaults struct {
	FilePerms uint32
	DirPerms  uint32
	OwnerUID  uint32
	OwnerGID  uint32
}

// DefaultsFromConfig derives request defaults from the filesystem config:
// implicit modes for perms and the root identity for ownership
func DefaultsFromConfig(cfg *config.Config) Defaults {
	return Defaults{
		FilePerms: cfg.FileMode,
		DirPerms:  cfg.DirMode,
		OwnerUID:  cfg.RootUID,
		OwnerGID:  cfg.RootGID,
	}
}

// Decoder converts seed documents into core node requests, resolving each
// file source's provider through the adapter registry
type Decoder struct {
	registry *adapters.Registry
	defaults Defaults
}

func NewDecoder(registry *adapters.Registry, defaults Defaults) *Decoder {
	return &Decoder{registry: registry, defaults: defaults}
}

// Seed is a decoded seed document split by node type, each in document order
type Seed struct {
	Dirs  []*clifs.DirCreateRequest
	Files []*clifs.FileCreateRequest
}

// GetNodeType extracts the node type from JSON without full unmarshaling
func GetNodeType(data []byte) (clifs.NodeCreateRequestType, error) {
	var meta struct {
		Type clifs.NodeCreateRequestType `json:"type"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return "", err
	}
	return meta.Type, nil
}

// UnmarshalFileRequest handles file-specific unmarshaling with sources
func (d *Decoder) UnmarshalFileRequest(data []byte) (*clifs.FileCreateRequest, error) {
	var dto FileRequestDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}
	if err := validate.Struct(&dto); err != nil {
		return nil, formatValidationError(err)
	}
	if dto.Type != clifs.FileNodeType {
		return nil, fmt.Errorf("%s: expected type %q, got %q", dto.Path, clifs.FileNodeType, dto.Type)
	}

	sources, err := d.unmarshalSources(dto.Sources, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dto.Path, err)
	}

	return &clifs.FileCreateRequest{
		NodeRequest: d.convertNodeDTO(dto.NodeRequestDTO, d.defaults.FilePerms),
		Sources:     sources,
	}, nil
}

// UnmarshalDirRequest handles explicit directory unmarshaling (no sources)
func (d *Decoder) UnmarshalDirRequest(data []byte) (*clifs.DirCreateRequest, error) {
	var dto DirRequestDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}
	if err := validate.Struct(&dto); err != nil {
		return nil, formatValidationError(err)
	}
	if dto.Type != clifs.DirNodeType {
		return nil, fmt.Errorf("%s: expected type %q, got %q", dto.Path, clifs.DirNodeType, dto.Type)
	}

	return &clifs.DirCreateRequest{
		NodeRequest: d.convertNodeDTO(dto.NodeRequestDTO, d.defaults.DirPerms),
	}, nil
}

// UnmarshalSeed decodes a JSON array of node definitions
func (d *Decoder) UnmarshalSeed(data []byte) (*Seed, error) {
	var nodes []json.RawMessage
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, err
	}
	return d.decodeNodes(nodes)
}

// LoadSeedFile decodes a seed document from a file.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func (d *Decoder) LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return d.UnmarshalSeed(data)
	case ".yaml", ".yml":
		var docs []any
		if err := yaml.Unmarshal(data, &docs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal seed file: %w", err)
		}
		// Sources stay raw JSON for the adapter providers, so re-encode each node
		nodes := make([]json.RawMessage, 0, len(docs))
		for i, doc := range docs {
			raw, err := json.Marshal(doc)
			if err != nil {
				return nil, fmt.Errorf("node %d: %w", i, err)
			}
			nodes = append(nodes, raw)
		}
		return d.decodeNodes(nodes)
	default:
		return nil, fmt.Errorf("unknown seed file extension: %s", path)
	}
}

func (d *Decoder) decodeNodes(nodes []json.RawMessage) (*Seed, error) {
	seed := &Seed{}
	for i, raw := range nodes {
		typ, err := GetNodeType(raw)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		switch typ {
		case clifs.FileNodeType:
			req, err := d.UnmarshalFileRequest(raw)
			if err != nil {
				return nil, fmt.Errorf("node %d: %w", i, err)
			}
			seed.Files = append(seed.Files, req)
		case clifs.DirNodeType:
			req, err := d.UnmarshalDirRequest(raw)
			if err != nil {
				return nil, fmt.Errorf("node %d: %w", i, err)
			}
			seed.Dirs = append(seed.Dirs, req)
		default:
			return nil, fmt.Errorf("node %d: unknown node type %q", i, typ)
		}
	}
	return seed, nil
}

// Helper function to process sources array
func (d *Decoder) unmarshalSources(sourceDTOs []SourceConfigDTO, rawData []byte) ([]clifs.FileSource, error) {
	// Extract raw sources array from JSON for adapter registry
	var rawMessage struct {
		Sources []json.RawMessage `json:"sources"`
	}
	if err := json.Unmarshal(rawData, &rawMessage); err != nil {
		return nil, err
	}

	sources := make([]clifs.FileSource, 0, len(rawMessage.Sources))
	for i, rawSource := range rawMessage.Sources {
		provider, err := d.registry.Resolve(rawSource)
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}

		// Apply priority default
		priority := valueOrDefault(sourceDTOs[i].Priority, i)

		sources = append(sources, clifs.FileSource{
			Provider: provider,
			Config:   rawSource,
			Priority: priority,
		})
	}

	return sources, nil
}

// Conversion logic with defaults in the unmarshaling layer
func (d *Decoder) convertNodeDTO(dto NodeRequestDTO, perms uint32) clifs.NodeRequest {
	return clifs.NodeRequest{
		Path:     dto.Path,
		Type:     dto.Type,
		UUID:     valueOrDefault(dto.UUID, uuid.New().String()),
		Perms:    valueOrDefault(dto.Perms, perms),
		OwnerUID: valueOrDefault(dto.OwnerUID, d.defaults.OwnerUID),
		OwnerGID: valueOrDefault(dto.OwnerGID, d.defaults.OwnerGID),
	}
}

func valueOrDefault[T any](ptr *T, defaultVal T) T {
	if ptr != nil {
		return *ptr
	}
	return defaultVal
}

// formatValidationError converts validator errors into user-friendly messages
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
