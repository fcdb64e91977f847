package likelihood_test

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/okian/amplike/internal/domain/likelihood"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTransform(t *testing.T) {
	Convey("Given the per-event transform", t, func() {
		Convey("When the magnitude is 1 or e", func() {
			one, ok1 := likelihood.Transform(complex(0, 1))
			e, okE := likelihood.Transform(cmplx.Rect(math.E, 0.3))

			Convey("Then (ln|a|)^2 should be 0 and 1", func() {
				So(ok1, ShouldBeTrue)
				So(okE, ShouldBeTrue)
				So(one, ShouldEqual, 0.0)
				So(e, ShouldAlmostEqual, 1.0, 1e-15)
			})
		})

		Convey("When the magnitude is below 1", func() {
			v, ok := likelihood.Transform(complex(math.Exp(-2), 0))

			Convey("Then the square keeps the value positive", func() {
				So(ok, ShouldBeTrue)
				So(v, ShouldAlmostEqual, 4.0, 1e-12)
			})
		})

		Convey("When the amplitude is zero", func() {
			v, ok := likelihood.Transform(0)

			Convey("Then it should be flagged and never produce NaN or Inf", func() {
				So(ok, ShouldBeFalse)
				So(v, ShouldEqual, 0.0)
			})
		})
	})
}

func TestPolicy(t *testing.T) {
	Convey("Given policy names", t, func() {
		Convey("When parsing them", func() {
			fail, errF := likelihood.ParsePolicy("fail")
			def, errD := likelihood.ParsePolicy("")
			ex, errE := likelihood.ParsePolicy(" Exclude ")
			_, errX := likelihood.ParsePolicy("skip")

			Convey("Then fail is the default and unknown names are rejected", func() {
				So(errF, ShouldBeNil)
				So(errD, ShouldBeNil)
				So(errE, ShouldBeNil)
				So(fail, ShouldEqual, likelihood.PolicyFail)
				So(def, ShouldEqual, likelihood.PolicyFail)
				So(ex, ShouldEqual, likelihood.PolicyExclude)
				So(errors.Is(errX, likelihood.ErrUnknownPolicy), ShouldBeTrue)
				So(ex.String(), ShouldEqual, "exclude")
				So(likelihood.Policy(9).String(), ShouldEqual, "policy(9)")
			})
		})
	})
}

func TestCombine(t *testing.T) {
	Convey("Given block sums", t, func() {
		v := []float64{0.1, 0.2, 0.3, 0.4, 0.5}

		Convey("When combining them", func() {
			Convey("Then the grouping should be a pairwise tree in block order", func() {
				So(likelihood.Combine(nil), ShouldEqual, 0.0)
				So(likelihood.Combine(v[:1]), ShouldEqual, v[0])
				So(likelihood.Combine(v[:2]), ShouldEqual, v[0]+v[1])
				So(likelihood.Combine(v[:3]), ShouldEqual, (v[0]+v[1])+v[2])
				So(likelihood.Combine(v[:4]), ShouldEqual, (v[0]+v[1])+(v[2]+v[3]))
				So(likelihood.Combine(v), ShouldEqual, ((v[0]+v[1])+(v[2]+v[3]))+v[4])
			})

			Convey("And the input should not be modified", func() {
				likelihood.Combine(v)
				So(v, ShouldResemble, []float64{0.1, 0.2, 0.3, 0.4, 0.5})
			})
		})
	})
}

func TestReducer(t *testing.T) {
	Convey("Given a reducer with block size 2", t, func() {
		r := likelihood.NewReducer(likelihood.WithBlockSize(2))

		Convey("When splitting 5 events", func() {
			Convey("Then there should be 3 blocks with a short tail", func() {
				So(r.BlockSize(), ShouldEqual, 2)
				So(r.Policy(), ShouldEqual, likelihood.PolicyFail)
				So(r.Blocks(5), ShouldEqual, 3)
				lo, hi := r.Bounds(2, 5)
				So(lo, ShouldEqual, 4)
				So(hi, ShouldEqual, 5)
			})
		})

		Convey("When reducing the two-event example", func() {
			amps := []complex128{complex(1, 0), complex(math.E, 0)}
			p, err := r.SumBlock(0, 0, amps)
			So(err, ShouldBeNil)
			sum, err := r.Finalize([]likelihood.Partial{p}, 2)

			Convey("Then the likelihood should be 0 + 1", func() {
				So(err, ShouldBeNil)
				So(sum.Value, ShouldAlmostEqual, 1.0, 1e-15)
				So(sum.Events, ShouldEqual, 2)
				So(sum.Excluded, ShouldBeEmpty)
			})
		})

		Convey("When a block holds a zero amplitude under the fail policy", func() {
			_, err := r.SumBlock(3, 6, []complex128{1, 0, 0})

			Convey("Then it should report the first degenerate index", func() {
				So(errors.Is(err, likelihood.ErrDegenerateAmplitude), ShouldBeTrue)
				var de *likelihood.DegenerateError
				So(errors.As(err, &de), ShouldBeTrue)
				So(de.Index, ShouldEqual, 7)
			})
		})

		Convey("When zero amplitudes occur under the exclude policy", func() {
			ex := likelihood.NewReducer(likelihood.WithBlockSize(2), likelihood.WithPolicy(likelihood.PolicyExclude))
			p0, err0 := ex.SumBlock(0, 0, []complex128{0, complex(math.E, 0)})
			p1, err1 := ex.SumBlock(1, 2, []complex128{complex(math.E, 0), 0})
			sum, err := ex.Finalize([]likelihood.Partial{p0, p1}, 4)

			Convey("Then they should be skipped and listed in ascending order", func() {
				So(err0, ShouldBeNil)
				So(err1, ShouldBeNil)
				So(err, ShouldBeNil)
				So(sum.Value, ShouldAlmostEqual, 2.0, 1e-15)
				So(sum.Excluded, ShouldResemble, []int{0, 3})
				So(math.IsNaN(sum.Value), ShouldBeFalse)
			})
		})

		Convey("When every event is excluded", func() {
			ex := likelihood.NewReducer(likelihood.WithPolicy(likelihood.PolicyExclude))
			p, _ := ex.SumBlock(0, 0, []complex128{0, 0})
			_, err := ex.Finalize([]likelihood.Partial{p}, 2)

			Convey("Then there is no likelihood to report", func() {
				So(errors.Is(err, likelihood.ErrAllExcluded), ShouldBeTrue)
			})
		})

		Convey("When the combined value overflows", func() {
			parts := []likelihood.Partial{{Sum: math.MaxFloat64}, {Block: 1, Sum: math.MaxFloat64}}
			_, err := r.Finalize(parts, 4)

			Convey("Then it should be reported as non-finite", func() {
				So(errors.Is(err, likelihood.ErrNonFiniteResult), ShouldBeTrue)
			})
		})

		Convey("When there are no partials", func() {
			_, err := r.Finalize(nil, 0)

			Convey("Then it should fail", func() {
				So(errors.Is(err, likelihood.ErrNoBlocks), ShouldBeTrue)
			})
		})
	})
}
