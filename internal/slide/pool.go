package slide

import (
	"fmt"
	"image"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/article2video/internal/failure"
)

// Input is one downloaded image in article order.
type Input struct {
	Index int
	Name  string
	Data  []byte
}

// Result is the outcome of processing one Input. Exactly one of Slide and Err
// is set.
type Result struct {
	Index int
	Name  string
	Slide *Slide
	Err   error
}

// Process decodes, normalizes and composes a single input.
func Process(in Input, frame FrameSize) Result {
	res := Result{Index: in.Index, Name: in.Name}

	var norm *image.NRGBA
	err := guard(func() error {
		img, err := Decode(in.Data)
		if err != nil {
			return err
		}
		norm = Normalize(img)
		return nil
	})
	if err != nil {
		res.Err = failure.New(failure.DecodeFailure, in.Name, err)
		return res
	}

	s, err := Compose(norm, frame)
	if err != nil {
		res.Err = failure.New(failure.DecodeFailure, in.Name, err)
		return res
	}
	s.Index, s.Name = in.Index, in.Name
	if s.BackgroundErr != nil {
		log.Printf("[!] Фон для %s не построен: %v", in.Name, s.BackgroundErr)
	}
	res.Slide = s
	return res
}

// ComposeAll processes inputs on at most workers goroutines. Results come
// back in input order regardless of completion order, and one failing input
// never stops the others.
func ComposeAll(inputs []Input, frame FrameSize, workers int) []Result {
	results := make([]Result, len(inputs))
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, in := range inputs {
		g.Go(func() error {
			results[i] = Process(in, frame)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.Err != nil {
			log.Printf("[!] Изображение %s пропущено: %v", r.Name, r.Err)
		}
	}
	return results
}

// Slides returns the successful slides in their original order.
func Slides(results []Result) []*Slide {
	out := make([]*Slide, 0, len(results))
	for _, r := range results {
		if r.Slide != nil {
			out = append(out, r.Slide)
		}
	}
	return out
}

// Failures returns the failed results in their original order.
func Failures(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("#%d %s: %v", r.Index, r.Name, r.Err)
	}
	return fmt.Sprintf("#%d %s: ok", r.Index, r.Name)
}
