// Package storetest provides functions for facilitating the testing of
// anything implementing the resource.Storage interface.
package storetest

import (
	"io"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/ndlib/gzstore/resource"
	"github.com/ndlib/gzstore/util"
)

type blob struct {
	res    *resource.Resource
	digest string
	size   int64
}

// Stress will spawn a number of goroutines to simultaneously import into and
// read from the given storage. It is a good test to run with the -race flag
// to try to find race conditions.
//
// Generate a list of sizes, until their sum is >= totalsize.
// For each size, import a random blob of that size, and then open it and
// compare the digest and the size of what is read back.
//
// randomly delete the blob or try reading it again.
// At some point every blob will be deleted. End the test.
func Stress(t *testing.T, s resource.Storage, totalsize int64) {
	// the pipeline is
	//       size maker
	// sizes ----> importer pool
	// dwnld ----> reader pool (possible repeat)
	//       ----> delete
	if totalsize == 0 {
		totalsize = 100 * 1000 * 1000 // 100MB
	}
	sizes := make(chan int64)
	dwnld := make(chan blob, 1000)
	done := make(chan struct{})
	var uppool, downpool sync.WaitGroup

	for i := 0; i < 5; i++ {
		uppool.Add(1)
		go func() {
			importer(t, s, sizes, dwnld)
			uppool.Done()
		}()
	}

	for i := 0; i < 10; i++ {
		downpool.Add(1)
		go func() {
			reader(t, s, dwnld, done)
			downpool.Done()
		}()
	}

	generatesizes(sizes, totalsize)
	close(sizes)
	uppool.Wait()
	close(done)
	downpool.Wait()
}

// randomReader is provides an interface to n bytes of random data.
// The length may be much longer than len(data).
type randomReader struct {
	n    int64
	data []byte
}

func (r *randomReader) Read(p []byte) (int, error) {
	if r.n <= 0 {
		return 0, io.EOF
	}
	total := 0
	data := r.data
	for len(p) > 0 && r.n > 0 {
		if r.n < int64(len(data)) {
			data = data[:int(r.n)]
		}
		n := copy(p, data)
		p = p[n:]
		r.n -= int64(n)
		total += n
	}
	return total, nil
}

func importer(t *testing.T, s resource.Storage, in <-chan int64, out chan<- blob) {
	const L = 64 * 1024 // 64k
	buffer := make([]byte, L)

	for size := range in {
		rand.Read(buffer)
		hw := util.NewHashWriterPlain()
		n, err := io.Copy(hw, &randomReader{data: buffer, n: size})
		if n != size || err != nil {
			t.Error("expected", size, "only read", n, err)
			continue
		}
		res, err := s.Import(&randomReader{data: buffer, n: size}, "stress")
		if err != nil {
			t.Error(size, err)
			continue
		}
		if res.Digest != hw.Digest() {
			t.Errorf("digest mismatch. Import() gave %s, expected %s", res.Digest, hw.Digest())
		}
		if res.Size != size {
			t.Error("Expected size", size, "Import() returned", res.Size)
		}
		out <- blob{res: res, digest: hw.Digest(), size: size}
	}
}

func reader(t *testing.T, s resource.Storage, in chan blob, done chan struct{}) {
	for {
		var blob blob
		select {
		case <-done:
			return
		case blob = <-in:
		}
		rc, err := s.Open(blob.res)
		if err != nil {
			t.Error(err)
			continue
		}
		hw := util.NewHashWriterPlain()
		n, err := io.Copy(hw, rc)
		if err != nil {
			t.Error(err)
		}
		if n != blob.size {
			t.Error("Expected", blob.size, "but read", n)
		}
		err = rc.Close()
		if err != nil {
			t.Error(err)
		}
		if _, ok := hw.CheckDigest(blob.digest); !ok {
			t.Errorf("digests unequal. %#v. Received %s", blob, hw.Digest())
			// note that the item is left in the store...
			continue
		}

		// figure out what to do next
		x := rand.Float32()
		switch {
		case x < 0.5:
			err := s.Delete(blob.res)
			if err != nil {
				t.Error(err)
			}
		default:
			// reread once
			in <- blob
		}
	}
}

func generatesizes(out chan<- int64, totalsize int64) {
	// We want a wide range of sizes, so generate the exponent of the size
	// uniformly at random.
	//  choose number x ~ uniform(0, 16)
	//  let size be exp(x)
	// Sizes start at 32 bytes so two random blobs never share a digest.
	for totalsize > 0 {
		x := 16 * rand.Float64()
		size := 32 + int64(math.Trunc(math.Exp(x)))
		out <- size
		totalsize -= size
	}
}
