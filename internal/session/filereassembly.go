package session

import "encoding/json"

type fileMetadataPayload struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// handleFileMetadata begins a new file reassembly, per spec.md §6's
// file-metadata/file-chunk/file-eof sequence.
func (m *Machine) handleFileMetadata(f frame) {
	var meta fileMetadataPayload
	if err := json.Unmarshal(f.Data, &meta); err != nil {
		return
	}
	m.st.fileReassembly = &FileReassembly{Name: meta.Name, Size: meta.Size, Type: meta.Type}
}

// handleFileChunk appends one chunk's decoded bytes in arrival order
// (Testable Property 8: concatenation yields exactly metadata.size bytes).
func (m *Machine) handleFileChunk(f frame) {
	if m.st.fileReassembly == nil {
		return
	}
	chunk, err := decodeChunk(f.Data)
	if err != nil {
		return
	}
	m.st.fileReassembly.Chunks = append(m.st.fileReassembly.Chunks, chunk)
}

// handleFileEOF finalizes the in-flight reassembly and hands the complete
// byte stream to the embedder.
func (m *Machine) handleFileEOF(f frame) {
	fr := m.st.fileReassembly
	m.st.fileReassembly = nil
	if fr == nil {
		return
	}
	if m.OnFileReceived != nil {
		m.OnFileReceived(fr.Name, fr.Type, fr.Bytes())
	}
}
