package duptree

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
)

const (
	// minFilesDefault is the direct-plus-nested file count a subtree must
	// strictly exceed before it is eligible to be reported as a duplicate.
	minFilesDefault = 2

	// minBytesDefault is the minimum total byte size a subtree must reach
	// before it is eligible to be reported as a duplicate.
	minBytesDefault = 512 * 1024 * 1024

	// minDuplicateNodes is the minimum number of distinct nodes that must
	// share a signature before it counts as a duplicate group; a signature
	// held by a single node is just that node, not a duplicate.
	minDuplicateNodes = 2
)

// Group is one exact-duplicate subtree: every member node has identical
// content (same files, same nested structure) even though they live at
// different paths.
type Group struct {
	Signature string
	Paths     [][]string
	FileCount uint64
	TotalSize uint64
}

// Finalize computes every node's signature bottom-up: a SHA-256 digest over
// its sorted direct files (name, size, checksum) and its children's
// already-computed signatures, plus the rolled-up file count and byte
// total. Processing nodes deepest-first guarantees a node's children are
// finalized before the node itself, without an explicit post-order walk.
func (idx *DirectoryIndex) Finalize() {
	for _, key := range idx.byDepthDescending() {
		n := idx.nodes[key]

		files := append([]FileEntry(nil), n.Files...)
		sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

		var fileCount, totalBytes uint64
		h := sha256.New()
		for _, f := range files {
			h.Write([]byte(f.Name))
			h.Write([]byte{0})
			h.Write([]byte(strconv.FormatUint(f.Size, 10)))
			h.Write([]byte{0})
			h.Write([]byte(f.Checksum))
			h.Write([]byte{0})
			fileCount++
			totalBytes += f.Size
		}

		type childTuple struct {
			name, signature string
		}
		children := make([]childTuple, 0, len(n.Children))
		for _, ck := range n.Children {
			child := idx.nodes[ck]
			children = append(children, childTuple{name: child.Path[len(child.Path)-1], signature: child.Signature})
			fileCount += child.fileCount
			totalBytes += child.totalBytes
		}
		sort.Slice(children, func(i, j int) bool { return children[i].name < children[j].name })
		for _, c := range children {
			h.Write([]byte(c.name))
			h.Write([]byte{0})
			h.Write([]byte(c.signature))
			h.Write([]byte{0})
		}

		n.Signature = hex.EncodeToString(h.Sum(nil))
		n.fileCount = fileCount
		n.totalBytes = totalBytes
	}
}

// FindDuplicateGroups returns every group of nodes sharing an identical
// signature, filtered to subtrees holding more than minFiles files and at
// least minBytes bytes, and requiring at least minDuplicateNodes members.
// The index must have been Finalized first.
func (idx *DirectoryIndex) FindDuplicateGroups(minFiles int, minBytes uint64) []Group {
	bySignature := make(map[string][]*Node)
	for _, n := range idx.nodes {
		if n.fileCount == 0 {
			continue
		}
		bySignature[n.Signature] = append(bySignature[n.Signature], n)
	}

	var groups []Group
	for sig, nodes := range bySignature {
		if len(nodes) < minDuplicateNodes {
			continue
		}
		rep := nodes[0]
		if rep.fileCount <= uint64(minFiles) || rep.totalBytes < minBytes {
			continue
		}

		paths := make([][]string, 0, len(nodes))
		for _, n := range nodes {
			paths = append(paths, append([]string(nil), n.Path...))
		}
		sort.Slice(paths, func(i, j int) bool {
			return pathKey(paths[i]) < pathKey(paths[j])
		})

		groups = append(groups, Group{
			Signature: sig,
			Paths:     paths,
			FileCount: rep.fileCount,
			TotalSize: rep.totalBytes,
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].TotalSize != groups[j].TotalSize {
			return groups[i].TotalSize > groups[j].TotalSize
		}
		return groups[i].Signature < groups[j].Signature
	})

	return groups
}
