package graph

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// The graph artefact is written as GraphML so it can be loaded by standard
// graph tooling. Hand-rolled with encoding/xml since the attribute-key
// preamble is small and fixed.

type graphmlDoc struct {
	XMLName xml.Name     `xml:"graphml"`
	Xmlns   string       `xml:"xmlns,attr"`
	Keys    []graphmlKey `xml:"key"`
	Graph   graphmlGraph `xml:"graph"`
}

type graphmlKey struct {
	ID       string `xml:"id,attr"`
	For      string `xml:"for,attr"`
	AttrName string `xml:"attr.name,attr"`
	AttrType string `xml:"attr.type,attr"`
}

type graphmlGraph struct {
	EdgeDefault string        `xml:"edgedefault,attr"`
	Nodes       []graphmlNode `xml:"node"`
	Edges       []graphmlEdge `xml:"edge"`
}

type graphmlNode struct {
	ID   string        `xml:"id,attr"`
	Data []graphmlData `xml:"data"`
}

type graphmlEdge struct {
	Source string        `xml:"source,attr"`
	Target string        `xml:"target,attr"`
	Data   []graphmlData `xml:"data"`
}

type graphmlData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

const (
	keyKind      = "d0"
	keyName      = "d1"
	keyFilePath  = "d2"
	keyStartLine = "d3"
	keyEndLine   = "d4"
	keyRelation  = "d5"
	keyLine      = "d6"
	graphmlXmlns = "http://graphml.graphdrawing.org/xmlns"
)

// Save writes the graph to path atomically (write then rename).
func (g *Graph) Save(path string) error {
	doc := graphmlDoc{
		Xmlns: graphmlXmlns,
		Keys: []graphmlKey{
			{ID: keyKind, For: "node", AttrName: "kind", AttrType: "string"},
			{ID: keyName, For: "node", AttrName: "name", AttrType: "string"},
			{ID: keyFilePath, For: "node", AttrName: "file_path", AttrType: "string"},
			{ID: keyStartLine, For: "node", AttrName: "start_line", AttrType: "int"},
			{ID: keyEndLine, For: "node", AttrName: "end_line", AttrType: "int"},
			{ID: keyRelation, For: "edge", AttrName: "relation", AttrType: "string"},
			{ID: keyLine, For: "edge", AttrName: "line", AttrType: "int"},
		},
		Graph: graphmlGraph{EdgeDefault: "directed"},
	}
	for _, n := range g.Nodes() {
		gn := graphmlNode{
			ID: n.ID,
			Data: []graphmlData{
				{Key: keyKind, Value: n.Kind},
				{Key: keyName, Value: n.Name},
			},
		}
		if n.FilePath != "" {
			gn.Data = append(gn.Data, graphmlData{Key: keyFilePath, Value: n.FilePath})
		}
		if n.StartLine > 0 {
			gn.Data = append(gn.Data,
				graphmlData{Key: keyStartLine, Value: strconv.Itoa(n.StartLine)},
				graphmlData{Key: keyEndLine, Value: strconv.Itoa(n.EndLine)},
			)
		}
		doc.Graph.Nodes = append(doc.Graph.Nodes, gn)
	}
	for _, e := range g.Edges() {
		ge := graphmlEdge{
			Source: e.From,
			Target: e.To,
			Data:   []graphmlData{{Key: keyRelation, Value: e.Relation}},
		}
		if e.Line > 0 {
			ge.Data = append(ge.Data, graphmlData{Key: keyLine, Value: strconv.Itoa(e.Line)})
		}
		doc.Graph.Edges = append(doc.Graph.Edges, ge)
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal graphml: %w", err)
	}
	out = append([]byte(xml.Header), out...)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create graphml dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("write graphml: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publish graphml: %w", err)
	}
	return nil
}

// Load reads a graph previously written by Save.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graphml: %w", err)
	}
	var doc graphmlDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse graphml: %w", err)
	}

	g := newGraph()
	for _, gn := range doc.Graph.Nodes {
		n := &Node{ID: gn.ID}
		for _, d := range gn.Data {
			switch d.Key {
			case keyKind:
				n.Kind = d.Value
			case keyName:
				n.Name = d.Value
			case keyFilePath:
				n.FilePath = d.Value
			case keyStartLine:
				n.StartLine, _ = strconv.Atoi(d.Value)
			case keyEndLine:
				n.EndLine, _ = strconv.Atoi(d.Value)
			}
		}
		g.addNode(n)
	}
	for _, ge := range doc.Graph.Edges {
		relation := ""
		line := 0
		for _, d := range ge.Data {
			switch d.Key {
			case keyRelation:
				relation = d.Value
			case keyLine:
				line, _ = strconv.Atoi(d.Value)
			}
		}
		g.addEdge(ge.Source, ge.Target, relation, line)
	}
	return g, nil
}
