package directory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"vpnswap/internal/model"
)

// FieldsPerEndpoint is the width of one record in the flat stream:
// hostname, load, address, public key.
const FieldsPerEndpoint = 4

const wireguardTechnology = "wireguard_udp"

// Parse decodes a provider response body. A JSON array is read as a server
// recommendation list; anything else as a newline-separated flat stream.
func Parse(body []byte) ([]model.Endpoint, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty response", model.ErrFetch)
	}
	if trimmed[0] == '[' {
		fields, err := flattenJSON(trimmed)
		if err != nil {
			return nil, err
		}
		return ParseStream(fields)
	}
	return ParseStream(splitLines(body))
}

// ParseStream rebuilds endpoints positionally from a flat field list. The
// field count must be a multiple of FieldsPerEndpoint; the public key field
// may be empty.
func ParseStream(fields []string) ([]model.Endpoint, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no endpoints in response", model.ErrFetch)
	}
	if len(fields)%FieldsPerEndpoint != 0 {
		return nil, fmt.Errorf("%w: %d fields is not a multiple of %d", model.ErrFetch, len(fields), FieldsPerEndpoint)
	}

	out := make([]model.Endpoint, 0, len(fields)/FieldsPerEndpoint)
	seen := make(map[string]int, cap(out))
	for i := 0; i < len(fields); i += FieldsPerEndpoint {
		rec := i / FieldsPerEndpoint
		host := strings.TrimSpace(fields[i])
		loadStr := strings.TrimSpace(fields[i+1])
		addr := strings.TrimSpace(fields[i+2])
		key := strings.TrimSpace(fields[i+3])

		if host == "" || addr == "" {
			return nil, fmt.Errorf("%w: record %d missing hostname or address", model.ErrFetch, rec)
		}
		load, err := strconv.Atoi(loadStr)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d load %q: %v", model.ErrFetch, rec, loadStr, err)
		}
		if prev, ok := seen[host]; ok {
			return nil, fmt.Errorf("%w: hostname %s repeated at records %d and %d", model.ErrFetch, host, prev, rec)
		}
		seen[host] = rec
		out = append(out, model.Endpoint{
			Hostname:    host,
			Address:     addr,
			LoadPercent: load,
			PublicKey:   key,
		})
	}
	return out, nil
}

func splitLines(body []byte) []string {
	text := strings.ReplaceAll(string(body), "\r\n", "\n")
	// Every field is newline-terminated, so an empty trailing public key
	// shows up as a blank last line. Drop only the final terminator.
	text = strings.TrimSuffix(text, "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

type server struct {
	Hostname     string       `json:"hostname"`
	Load         *int         `json:"load"`
	Station      string       `json:"station"`
	Technologies []technology `json:"technologies"`
}

type technology struct {
	Identifier string `json:"identifier"`
	Metadata   []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"metadata"`
}

// flattenJSON turns a recommendation list into the flat stream, mirroring
// the field selection a jq filter over the same document would produce.
func flattenJSON(body []byte) ([]string, error) {
	var servers []server
	if err := json.Unmarshal(body, &servers); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", model.ErrFetch, err)
	}
	fields := make([]string, 0, len(servers)*FieldsPerEndpoint)
	for _, s := range servers {
		load := ""
		if s.Load != nil {
			load = strconv.Itoa(*s.Load)
		}
		fields = append(fields, s.Hostname, load, s.Station, publicKey(s.Technologies))
	}
	return fields, nil
}

func publicKey(techs []technology) string {
	for _, t := range techs {
		if t.Identifier != wireguardTechnology {
			continue
		}
		for _, m := range t.Metadata {
			if m.Name == "public_key" {
				return m.Value
			}
		}
	}
	return ""
}
