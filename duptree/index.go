package duptree

import (
	"sort"
	"strings"

	"github.com/mahrens917/aws-sub001/store"
)

// FileEntry is one file recorded directly under a directory node.
type FileEntry struct {
	Name     string
	Size     uint64
	Checksum string
}

// Node is one directory in the index: a bucket root, or a path segment
// beneath it. Its path tuple is bucket followed by zero or more key
// segments split on "/".
type Node struct {
	Path     []string
	Files    []FileEntry
	Children []string // child path-tuple keys, joined with "\x00"

	// Signature is computed by Finalize and identifies this node's content
	// independent of where in the tree it sits.
	Signature string

	fileCount  uint64
	totalBytes uint64
}

// TotalFiles returns the number of files contained in this node's subtree,
// direct and nested, valid only after Finalize.
func (n *Node) TotalFiles() uint64 { return n.fileCount }

// TotalBytes returns the number of bytes contained in this node's subtree,
// valid only after Finalize.
func (n *Node) TotalBytes() uint64 { return n.totalBytes }

// DirectoryIndex is a flat map of path-tuple keys to nodes, a DAG rooted at
// a single virtual root (the empty path) whose children are the bucket
// nodes. There are no parent pointers; a node's depth is simply
// len(node.Path).
type DirectoryIndex struct {
	nodes map[string]*Node
}

// pathKey joins a path tuple into the map key used internally.
func pathKey(path []string) string {
	return strings.Join(path, "\x00")
}

// BuildIndex constructs a directory index over files, creating one node
// per unique (bucket, segment1, segment2, ...) tuple and wiring each node's
// direct child-directory list.
func BuildIndex(files []store.FileRecord) *DirectoryIndex {
	idx := &DirectoryIndex{nodes: make(map[string]*Node)}

	for _, f := range files {
		segments := strings.Split(strings.Trim(f.Key, "/"), "/")
		dirSegments := segments[:len(segments)-1]
		name := segments[len(segments)-1]

		dirPath := append([]string{f.Bucket}, dirSegments...)
		node := idx.ensureNode(dirPath)
		node.Files = append(node.Files, FileEntry{Name: name, Size: f.Size, Checksum: f.ETag})

		idx.ensureAncestors(dirPath)
	}

	return idx
}

// ensureNode returns the node for path, creating it (and registering it as
// a child of its parent) if absent.
func (idx *DirectoryIndex) ensureNode(path []string) *Node {
	key := pathKey(path)
	if n, ok := idx.nodes[key]; ok {
		return n
	}
	n := &Node{Path: append([]string(nil), path...)}
	idx.nodes[key] = n
	return n
}

// ensureAncestors walks from the root down to path, creating every
// intermediate node and linking each to its parent's Children list.
func (idx *DirectoryIndex) ensureAncestors(path []string) {
	for i := 1; i <= len(path); i++ {
		child := idx.ensureNode(path[:i])
		if i == 0 {
			continue
		}
		parent := idx.ensureNode(path[:i-1])
		childKey := pathKey(child.Path)

		found := false
		for _, c := range parent.Children {
			if c == childKey {
				found = true
				break
			}
		}
		if !found {
			parent.Children = append(parent.Children, childKey)
		}
	}
}

// Nodes returns every node in the index, in no particular order.
func (idx *DirectoryIndex) Nodes() []*Node {
	out := make([]*Node, 0, len(idx.nodes))
	for _, n := range idx.nodes {
		out = append(out, n)
	}
	return out
}

// byDepthDescending orders path-tuple keys from deepest to shallowest, so
// that finalizing in this order guarantees every child is finalized before
// its parent without an explicit post-order tree walk.
func (idx *DirectoryIndex) byDepthDescending() []string {
	keys := make([]string, 0, len(idx.nodes))
	for k := range idx.nodes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		di, dj := len(idx.nodes[keys[i]].Path), len(idx.nodes[keys[j]].Path)
		if di != dj {
			return di > dj
		}
		return keys[i] < keys[j]
	})
	return keys
}
