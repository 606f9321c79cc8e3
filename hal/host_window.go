//go:build cgo

package hal

import (
	"context"

	"github.com/hajimehoshi/ebiten/v2"

	"dimlayer/internal/buildinfo"
)

// RunWindow shows p in a desktop window while run executes. Closing the
// window cancels the context passed to run; RunWindow returns run's error.
func RunWindow(ctx context.Context, p *Preview, run func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- run(ctx)
		cancel()
	}()

	w, h := p.Size()
	g := &previewGame{p: p, ctx: ctx, pix: make([]byte, len(p.front.Pix))}
	ebiten.SetWindowTitle("dimlayer (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(int(w), int(h))
	ebiten.SetTPS(30)
	if err := ebiten.RunGame(g); err != nil {
		cancel()
		<-done
		return err
	}
	cancel()
	return <-done
}

type previewGame struct {
	p   *Preview
	ctx context.Context
	img *ebiten.Image
	pix []byte
}

func (g *previewGame) Update() error {
	select {
	case <-g.ctx.Done():
		return ebiten.Termination
	default:
		return nil
	}
}

func (g *previewGame) Draw(screen *ebiten.Image) {
	if g.img == nil {
		w, h := g.p.Size()
		g.img = ebiten.NewImage(int(w), int(h))
	}
	g.p.copyFront(g.pix)
	g.img.WritePixels(g.pix)
	screen.DrawImage(g.img, nil)
}

func (g *previewGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	w, h := g.p.Size()
	return int(w), int(h)
}
