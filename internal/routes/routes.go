// Package routes loads the route configuration document: the fixed set of
// origin/destination pairs a cycle measures.
package routes

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/smenon/traffic-collector/internal/models"
)

type document struct {
	Routes []models.Route `json:"routes"`
}

// Load reads the JSON route document at path. Field presence is checked but
// nothing beyond that; the document is maintained by hand and trusted.
func Load(path string) ([]models.Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("routes file not found: %s", path)
		}
		return nil, fmt.Errorf("read routes file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse routes file: %w", err)
	}
	if len(doc.Routes) == 0 {
		return nil, fmt.Errorf("routes file %s contains no routes", path)
	}

	seen := make(map[string]struct{}, len(doc.Routes))
	for i, r := range doc.Routes {
		if r.ID == "" || r.Name == "" {
			return nil, fmt.Errorf("route %d: id and name are required", i)
		}
		if r.Origin.Name == "" || r.Destination.Name == "" {
			return nil, fmt.Errorf("route %s: origin and destination names are required", r.ID)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("route id %s appears more than once", r.ID)
		}
		seen[r.ID] = struct{}{}
	}

	return doc.Routes, nil
}
