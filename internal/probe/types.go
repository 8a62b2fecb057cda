package probe

// StreamKind classifies a stream by its content type. Integrity comparison
// is always same-kind; video and audio streams are never interchangeable.
type StreamKind string

const (
	KindVideo StreamKind = "video"
	KindAudio StreamKind = "audio"
	KindOther StreamKind = "other" // subtitles, data, attachments
)

// Stream holds the parsed properties of a single stream within a container.
// Index is the absolute container position (0-based, order-significant).
type Stream struct {
	Index      int
	Kind       StreamKind
	Codec      string
	Duration   float64 // seconds; 0 when the container does not report it
	Channels   int     // audio only
	SampleRate int     // audio only
	BitRate    int64   // bits/sec; 0 when unknown
	Language   string
}

// MediaFile is an immutable snapshot of a media file's layout taken at
// probe time. Streams are ordered exactly as found in the container.
type MediaFile struct {
	Path     string
	Format   string
	Duration float64
	Streams  []Stream
}

// StreamsOfKind returns the streams of the given kind in container order.
// The slice position of each returned stream is its kind-relative ordinal.
func (m *MediaFile) StreamsOfKind(kind StreamKind) []Stream {
	var out []Stream
	for _, s := range m.Streams {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// VideoStreams returns the video streams in container order.
func (m *MediaFile) VideoStreams() []Stream { return m.StreamsOfKind(KindVideo) }

// AudioStreams returns the audio streams in container order.
func (m *MediaFile) AudioStreams() []Stream { return m.StreamsOfKind(KindAudio) }
