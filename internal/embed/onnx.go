package embed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/daulet/tokenizers"
	ort "github.com/yalue/onnxruntime_go"

	photoerrors "github.com/aman-oss/photoidx/internal/errors"
)

// clipMaxSeqLen bounds the text tower's token length; CLIP's own tokenizer
// caps at 77 tokens and pads/truncates to that length.
const clipMaxSeqLen = 77

// ONNXEmbedder is a CLIP-family dual image/text encoder backed by two ONNX
// Runtime sessions (one per tower) sharing a single tokenizer. modelDir must
// contain visual.onnx, textual.onnx, and tokenizer.json — the layout
// produced by exporting a CLIP checkpoint (e.g. open_clip) to ONNX with
// separate image and text graphs.
type ONNXEmbedder struct {
	mu sync.Mutex

	indexID   string
	dim       int
	visual    *ort.DynamicAdvancedSession
	textual   *ort.DynamicAdvancedSession
	tokenizer *tokenizers.Tokenizer
	closed    bool
}

// ONNXConfig configures NewONNX.
type ONNXConfig struct {
	ModelDir   string
	IndexID    string // namespace tag stored alongside the index (spec §3)
	Dimensions int
	OrtLibPath string // path to the onnxruntime shared library; "" uses the system default
	NumThreads int     // 0 picks min(4, NumCPU)
}

// NewONNX loads the visual and textual ONNX graphs plus the shared
// tokenizer from cfg.ModelDir.
func NewONNX(cfg ONNXConfig) (*ONNXEmbedder, error) {
	visualPath := filepath.Join(cfg.ModelDir, "visual.onnx")
	textualPath := filepath.Join(cfg.ModelDir, "textual.onnx")
	tokenPath := filepath.Join(cfg.ModelDir, "tokenizer.json")

	for _, p := range []string{visualPath, textualPath, tokenPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, photoerrors.EmbedderUnavailable(fmt.Sprintf("model asset missing: %s", p), err)
		}
	}

	if cfg.OrtLibPath != "" {
		ort.SetSharedLibraryPath(cfg.OrtLibPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, photoerrors.EmbedderUnavailable("initialize onnxruntime", err)
	}

	numThreads := cfg.NumThreads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
		if numThreads > 4 {
			numThreads = 4
		}
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, photoerrors.EmbedderUnavailable("session options", err)
	}
	defer opts.Destroy()
	if err := opts.SetIntraOpNumThreads(numThreads); err != nil {
		return nil, photoerrors.EmbedderUnavailable("set intra-op threads", err)
	}
	if err := opts.SetInterOpNumThreads(1); err != nil {
		return nil, photoerrors.EmbedderUnavailable("set inter-op threads", err)
	}

	visual, err := ort.NewDynamicAdvancedSession(visualPath,
		[]string{"pixel_values"}, []string{"image_embeds"}, opts)
	if err != nil {
		return nil, photoerrors.EmbedderUnavailable("create visual session", err)
	}

	textual, err := ort.NewDynamicAdvancedSession(textualPath,
		[]string{"input_ids", "attention_mask"}, []string{"text_embeds"}, opts)
	if err != nil {
		visual.Destroy()
		return nil, photoerrors.EmbedderUnavailable("create textual session", err)
	}

	tk, err := tokenizers.FromFile(tokenPath)
	if err != nil {
		visual.Destroy()
		textual.Destroy()
		return nil, photoerrors.EmbedderUnavailable("load tokenizer", err)
	}

	dim := cfg.Dimensions
	if dim <= 0 {
		dim = 512
	}

	return &ONNXEmbedder{
		indexID:   cfg.IndexID,
		dim:       dim,
		visual:    visual,
		textual:   textual,
		tokenizer: tk,
	}, nil
}

func (e *ONNXEmbedder) IndexID() string { return e.indexID }

func (e *ONNXEmbedder) Dimensions() int { return e.dim }

func (e *ONNXEmbedder) Available(_ context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closed
}

func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.visual != nil {
		e.visual.Destroy()
	}
	if e.textual != nil {
		e.textual.Destroy()
	}
	if e.tokenizer != nil {
		e.tokenizer.Close()
	}
	return nil
}

// EmbedText tokenizes text to CLIP's 77-token convention and runs the
// textual tower, returning an L2-normalized embedding.
func (e *ONNXEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, photoerrors.EmbedderUnavailable("embedder closed", nil)
	}

	enc := e.tokenizer.EncodeWithOptions(text, true, tokenizers.WithReturnAttentionMask())
	ids := enc.IDs
	if len(ids) > clipMaxSeqLen {
		ids = ids[:clipMaxSeqLen]
	}

	ids64 := make([]int64, clipMaxSeqLen)
	mask64 := make([]int64, clipMaxSeqLen)
	for i, v := range ids {
		ids64[i] = int64(v)
		mask64[i] = 1
	}

	shape := ort.NewShape(1, int64(clipMaxSeqLen))
	idsTensor, err := ort.NewTensor(shape, ids64)
	if err != nil {
		return nil, photoerrors.EmbeddingFailed(text, err)
	}
	defer idsTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, mask64)
	if err != nil {
		return nil, photoerrors.EmbeddingFailed(text, err)
	}
	defer maskTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.textual.Run([]ort.Value{idsTensor, maskTensor}, outputs); err != nil {
		return nil, photoerrors.EmbeddingFailed(text, err)
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, photoerrors.EmbeddingFailed(text, fmt.Errorf("unexpected textual output type"))
	}

	vec := append([]float32(nil), out.GetData()[:e.dim]...)
	return normalizeVector(vec), nil
}

// EmbedImages decodes, preprocesses, and embeds each path in batches of
// batchSize (or embed.DefaultBatchSize if <= 0), reporting progress after
// each batch and honoring ctx cancellation between batches. A path that
// fails to decode gets a zero row rather than aborting the whole batch.
func (e *ONNXEmbedder) EmbedImages(ctx context.Context, paths []string, batchSize int, progress ProgressFunc) ([][]float32, []bool, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	rows := make([][]float32, len(paths))
	valid := make([]bool, len(paths))
	doneCount := 0

	emit := func(phase string) {
		if progress != nil {
			progress(Progress{Phase: phase, Done: doneCount, Total: len(paths), Valid: countTrue(valid[:doneCount])})
		}
	}

	for start := 0; start < len(paths); start += batchSize {
		if err := ctx.Err(); err != nil {
			return rows[:doneCount], valid[:doneCount], nil
		}

		end := start + batchSize
		if end > len(paths) {
			end = len(paths)
		}
		batchRows, batchValid, err := e.embedImageBatch(paths[start:end])
		if err != nil {
			return nil, nil, err
		}
		copy(rows[start:end], batchRows)
		copy(valid[start:end], batchValid)
		doneCount = end
		emit("encode_done")
	}

	return rows, valid, nil
}

func (e *ONNXEmbedder) embedImageBatch(paths []string) ([][]float32, []bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, nil, photoerrors.EmbedderUnavailable("embedder closed", nil)
	}

	const planeSize = 3 * clipImageSize * clipImageSize
	flat := make([]float32, len(paths)*planeSize)
	valid := make([]bool, len(paths))

	for i, p := range paths {
		tensor, err := decodeAndPreprocess(p)
		if err != nil {
			continue // leave this path's slice zeroed, invalid
		}
		copy(flat[i*planeSize:], tensor)
		valid[i] = true
	}

	shape := ort.NewShape(int64(len(paths)), 3, int64(clipImageSize), int64(clipImageSize))
	pixelTensor, err := ort.NewTensor(shape, flat)
	if err != nil {
		return nil, nil, photoerrors.EmbeddingFailed("image batch", err)
	}
	defer pixelTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.visual.Run([]ort.Value{pixelTensor}, outputs); err != nil {
		return nil, nil, photoerrors.EmbeddingFailed("image batch", err)
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, nil, photoerrors.EmbeddingFailed("image batch", fmt.Errorf("unexpected visual output type"))
	}
	data := out.GetData()

	rows := make([][]float32, len(paths))
	for i := range paths {
		row := make([]float32, e.dim)
		if valid[i] {
			copy(row, data[i*e.dim:(i+1)*e.dim])
			normalizeVector(row)
		}
		rows[i] = row
	}
	return rows, valid, nil
}
