package session

import (
	"fmt"
	"strings"
)

// Handshake build numbers per protocol revision.
const (
	BuildSP0      int32 = 60905
	BuildSP1      int32 = 61355
	BuildSP2XPack int32 = 61259
)

const nameWidth = 256

// Config is the per-session protocol configuration.
type Config struct {
	ProtocolVersion uint32
	ApplicationName string
}

type handshakeVersion struct {
	VersionMajor int32
	VersionMinor int32
	BuildMajor   int32
	BuildMinor   int32
}

var handshakeTable = map[uint32]handshakeVersion{
	2: {VersionMajor: 0, VersionMinor: 0, BuildMajor: BuildSP0, BuildMinor: 0},
	3: {VersionMajor: 10, VersionMinor: 0, BuildMajor: BuildSP1, BuildMinor: 0},
	4: {VersionMajor: 10, VersionMinor: 0, BuildMajor: BuildSP2XPack, BuildMinor: 0},
}

// SupportedProtocol reports whether v has a handshake table entry.
func SupportedProtocol(v uint32) bool {
	_, ok := handshakeTable[v]
	return ok
}

// ConfigurationError rejects session setup before anything is sent.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("session: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func (c Config) Validate() error {
	if !SupportedProtocol(c.ProtocolVersion) {
		return &ConfigurationError{Field: "protocol_version", Value: c.ProtocolVersion, Reason: "supported versions are 2, 3, 4"}
	}
	name := strings.TrimSpace(c.ApplicationName)
	if name == "" {
		return &ConfigurationError{Field: "application_name", Value: `""`, Reason: "required"}
	}
	if len(c.ApplicationName) > nameWidth-1 {
		return &ConfigurationError{Field: "application_name", Value: len(c.ApplicationName), Reason: "longer than 255 bytes"}
	}
	return nil
}
