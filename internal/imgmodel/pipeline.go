package imgmodel

import (
	"context"
	"fmt"
	"image"

	"modelzoo/internal/descriptor"
)

// TranslationPipeline renders an image from a semantic mask in the style of an
// exemplar. A correspondence network warps the exemplar onto the mask; its first
// output plus the input semantics feed the generator.
type TranslationPipeline struct {
	correspondenceFile string

	Correspondence Network
	Generator      *ProcessingModel

	// Classes is the one-hot depth of the semantic inputs.
	Classes int
	// Size is the spatial size both networks run at.
	Size Size
}

// NewTranslationPipeline prepares a pipeline over the two network files.
func NewTranslationPipeline(correspondenceFile, generatorFile string) *TranslationPipeline {
	return &TranslationPipeline{
		correspondenceFile: correspondenceFile,
		Generator:          NewProcessingModel(generatorFile, false),
		Classes:            DefaultSemanticClasses,
		Size:               Size{Width: 256, Height: 256},
	}
}

// Load reads both networks. The correspondence network must take the input
// semantics, the exemplar image and the exemplar semantics, in that order. A
// static first input sets Classes and Size.
func (p *TranslationPipeline) Load(ctx context.Context, rt Runtime) error {
	if rt == nil {
		return fmt.Errorf("%w: nil runtime", ErrRuntimeUnavailable)
	}
	corr, err := rt.ReadNetwork(ctx, p.correspondenceFile, descriptor.WeightsPath(p.correspondenceFile))
	if err != nil {
		return fmt.Errorf("read network %s: %w", p.correspondenceFile, err)
	}
	if len(corr.Inputs()) < 3 || len(corr.Outputs()) == 0 {
		_ = corr.Close()
		return fmt.Errorf("%w: correspondence network needs 3 inputs and an output, has %d and %d",
			ErrShapeUnsupported, len(corr.Inputs()), len(corr.Outputs()))
	}
	if sh := corr.Inputs()[0].Shape; len(sh) == 4 && sh[1] > 0 && sh[2] > 0 && sh[3] > 0 {
		p.Classes = int(sh[1])
		p.Size = Size{Width: int(sh[3]), Height: int(sh[2])}
	}
	if err := p.Generator.Load(ctx, rt); err != nil {
		_ = corr.Close()
		return err
	}
	p.Correspondence = corr
	return nil
}

// Translate runs the full pipeline.
func (p *TranslationPipeline) Translate(ctx context.Context, mask *image.Gray, exemplar image.Image, exemplarMask *image.Gray) (*Result, error) {
	if p.Correspondence == nil {
		return nil, ErrNotLoaded
	}
	if mask == nil || exemplar == nil || exemplarMask == nil {
		return nil, fmt.Errorf("translate: missing mask or exemplar")
	}
	w, h := p.Size.Width, p.Size.Height
	sem, err := OneHot(ResizeMaskNearest(mask, w, h), p.Classes)
	if err != nil {
		return nil, err
	}
	refSem, err := OneHot(ResizeMaskNearest(exemplarMask, w, h), p.Classes)
	if err != nil {
		return nil, err
	}
	ref, err := ImageToTensor(ResizeImage(exemplar, w, h), 3, p.Generator.Options())
	if err != nil {
		return nil, err
	}

	ins, outs := p.Correspondence.Inputs(), p.Correspondence.Outputs()
	corrOut, err := p.Correspondence.Infer(ctx, map[string]*Tensor{
		ins[0].Name: sem,
		ins[1].Name: ref,
		ins[2].Name: refSem,
	})
	if err != nil {
		return nil, fmt.Errorf("correspondence: %w", err)
	}
	warped, ok := corrOut[outs[0].Name]
	if !ok || warped == nil {
		return nil, fmt.Errorf("correspondence returned no %q output", outs[0].Name)
	}
	genIn, err := ConcatChannels(warped, sem)
	if err != nil {
		return nil, err
	}
	res, err := p.Generator.InferTensors(ctx, map[string]*Tensor{p.Generator.InputName(): genIn})
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	res.Meta = Meta{OriginalSize: Size{Width: mask.Bounds().Dx(), Height: mask.Bounds().Dy()}, InputSize: p.Size}
	return res, nil
}

// Close releases both networks.
func (p *TranslationPipeline) Close() error {
	var err error
	if p.Correspondence != nil {
		err = p.Correspondence.Close()
		p.Correspondence = nil
	}
	if gerr := p.Generator.Close(); err == nil {
		err = gerr
	}
	return err
}
