package parser

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/qubzes/screenreflect/internal/observer"
	"github.com/qubzes/screenreflect/internal/wire"
)

type fakeVideoDecoder struct {
	configured [][]byte
	decoded    [][]byte
	resets     int
	failNext   bool
}

func (f *fakeVideoDecoder) Configure(initBytes []byte) error {
	f.configured = append(f.configured, initBytes)
	return nil
}
func (f *fakeVideoDecoder) Decode(payload []byte, isKey bool) error {
	if f.failNext {
		f.failNext = false
		return errors.New("decode failed")
	}
	f.decoded = append(f.decoded, payload)
	return nil
}
func (f *fakeVideoDecoder) Reset() { f.resets++ }

type fakeAudioDecoder struct {
	configured [][]byte
	decoded    [][]byte
	resets     int
}

func (f *fakeAudioDecoder) Configure(initBytes []byte) error {
	f.configured = append(f.configured, initBytes)
	return nil
}
func (f *fakeAudioDecoder) Decode(payload []byte) error {
	f.decoded = append(f.decoded, payload)
	return nil
}
func (f *fakeAudioDecoder) Reset() { f.resets++ }

func writePackets(t *testing.T, packets []wire.Packet) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	for _, p := range packets {
		if err := w.WritePacket(p.Kind, p.Payload); err != nil {
			t.Fatalf("WritePacket: %v", err)
		}
	}
	return &buf
}

func TestParserDispatchesAllKinds(t *testing.T) {
	video := &fakeVideoDecoder{}
	audio := &fakeAudioDecoder{}
	dimPub := observer.NewPublisher[wire.Dimension]()
	sub := dimPub.Subscribe(1)
	defer sub.Unsubscribe()

	buf := writePackets(t, []wire.Packet{
		{Kind: wire.KindVideoConfig, Payload: []byte{1, 2}},
		{Kind: wire.KindAudioConfig, Payload: []byte{3, 4}},
		{Kind: wire.KindVideo, Payload: []byte{5, 6, 7}},
		{Kind: wire.KindAudio, Payload: []byte{8, 9}},
		{Kind: wire.KindDimension, Payload: wire.EncodeDimension(1280, 720)},
	})

	r := wire.NewReader(buf, 0)
	p := New(r, Dispatcher{Video: video, Audio: audio, Dimension: dimPub})

	for i := 0; i < 5; i++ {
		if err := p.ReadOne(); err != nil {
			t.Fatalf("ReadOne %d: %v", i, err)
		}
	}

	if len(video.configured) != 1 || len(video.decoded) != 1 {
		t.Fatalf("unexpected video decoder state: %+v", video)
	}
	if len(audio.configured) != 1 || len(audio.decoded) != 1 {
		t.Fatalf("unexpected audio decoder state: %+v", audio)
	}

	select {
	case dim := <-sub.C:
		if dim.Width != 1280 || dim.Height != 720 {
			t.Fatalf("unexpected dimension: %+v", dim)
		}
	case <-time.After(time.Second):
		t.Fatal("expected dimension event")
	}
}

func TestParserUnknownKindToleratedThenResumesDispatch(t *testing.T) {
	video := &fakeVideoDecoder{}
	buf := writePackets(t, []wire.Packet{
		{Kind: 0xee, Payload: []byte{0xde, 0xad, 0xbe, 0xef}},
		{Kind: wire.KindVideo, Payload: []byte{1, 2, 3}},
	})

	r := wire.NewReader(buf, 0)
	p := New(r, Dispatcher{Video: video})

	if err := p.ReadOne(); err != nil {
		t.Fatalf("ReadOne unknown: %v", err)
	}
	if err := p.ReadOne(); err != nil {
		t.Fatalf("ReadOne video: %v", err)
	}
	if len(video.decoded) != 1 {
		t.Fatalf("expected video decode to proceed after unknown kind skip, got %+v", video.decoded)
	}
}

func TestParserDecodeFailureIsNonFatal(t *testing.T) {
	video := &fakeVideoDecoder{failNext: true}
	buf := writePackets(t, []wire.Packet{
		{Kind: wire.KindVideo, Payload: []byte{1}},
		{Kind: wire.KindVideo, Payload: []byte{2}},
	})

	r := wire.NewReader(buf, 0)
	p := New(r, Dispatcher{Video: video})

	if err := p.ReadOne(); err != nil {
		t.Fatalf("expected decode failure to not surface as parser error: %v", err)
	}
	if err := p.ReadOne(); err != nil {
		t.Fatalf("ReadOne second: %v", err)
	}
	if len(video.decoded) != 1 {
		t.Fatalf("expected second video frame decoded after first failed, got %+v", video.decoded)
	}
}

func TestResetDecodersResetsBoth(t *testing.T) {
	video := &fakeVideoDecoder{}
	audio := &fakeAudioDecoder{}
	ResetDecoders(Dispatcher{Video: video, Audio: audio})
	if video.resets != 1 || audio.resets != 1 {
		t.Fatalf("expected both decoders reset once, got video=%d audio=%d", video.resets, audio.resets)
	}
}

func TestRunStopsOnFatalError(t *testing.T) {
	buf := writePackets(t, []wire.Packet{{Kind: wire.KindAudio, Payload: make([]byte, 100)}})
	full := buf.Bytes()
	truncated := bytes.NewReader(full[:wire.HeaderLen+10])

	r := wire.NewReader(truncated, 0)
	p := New(r, Dispatcher{})

	err := p.Run(nil)
	if err == nil {
		t.Fatal("expected Run to return the fatal transport error")
	}
	if !IsFatal(err) {
		t.Fatal("expected IsFatal true for a truncated-payload error")
	}
}
