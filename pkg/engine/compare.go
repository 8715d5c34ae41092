package engine

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// ModelCounts is one model's correctness tally.
type ModelCounts struct {
	ModelID string `json:"model_id"`
	Correct int    `json:"correct"`
	Total   int    `json:"total"`
}

// ModelComparisonResult is the persisted outcome of a champion/challenger
// comparison. WinningModel is empty when the models are statistically
// indistinguishable or exactly tied.
type ModelComparisonResult struct {
	ID           string    `json:"id" column:"id" dbtype:"TEXT" primary:"true"`
	ModelAID     string    `json:"model_a_id" column:"model_a_id" dbtype:"TEXT NOT NULL"`
	ModelBID     string    `json:"model_b_id" column:"model_b_id" dbtype:"TEXT NOT NULL"`
	ChiSquare    float64   `json:"chi2" column:"chi2" dbtype:"REAL DEFAULT 0.0"`
	PValue       float64   `json:"p_value" column:"p_value" dbtype:"REAL DEFAULT 1.0"`
	WinningModel string    `json:"winning_model,omitempty" column:"winning_model" dbtype:"TEXT"`
	AccuracyDiff float64   `json:"accuracy_diff" column:"accuracy_diff" dbtype:"REAL DEFAULT 0.0"`
	SampleSize   int       `json:"sample_size" column:"sample_size" dbtype:"INTEGER DEFAULT 0"`
	CreatedAt    time.Time `json:"created_at" column:"created_at" dbtype:"DATETIME DEFAULT CURRENT_TIMESTAMP"`
}

// CompareModels runs a chi-square test of independence (1 degree of
// freedom, no Yates correction) on the two models' correctness counts and
// declares a winner only when the difference is significant at the given
// level and one accuracy is strictly greater.
func CompareModels(a, b ModelCounts, significance float64) (*ModelComparisonResult, error) {
	if significance <= 0 || significance >= 1 {
		significance = 0.05
	}

	aIncorrect := max(0, a.Total-a.Correct)
	bIncorrect := max(0, b.Total-b.Correct)

	rowA := a.Correct + aIncorrect
	rowB := b.Correct + bIncorrect
	colCorrect := a.Correct + b.Correct
	colIncorrect := aIncorrect + bIncorrect
	n := rowA + rowB

	if n == 0 {
		return nil, &InsufficientSampleError{Reason: "no observations for either model"}
	}
	if colCorrect == 0 && colIncorrect == 0 {
		return nil, &InsufficientSampleError{Reason: "both marginal totals are zero"}
	}

	chi2 := chiSquare2x2(float64(a.Correct), float64(aIncorrect), float64(b.Correct), float64(bIncorrect),
		float64(rowA), float64(rowB), float64(colCorrect), float64(colIncorrect), float64(n))
	pValue := chiSquarePValue1df(chi2)

	accA := accuracy(a.Correct, a.Total)
	accB := accuracy(b.Correct, b.Total)

	winner := ""
	if pValue < significance {
		if accA > accB {
			winner = a.ModelID
		} else if accB > accA {
			winner = b.ModelID
		}
	}

	return &ModelComparisonResult{
		ID:           uuid.NewString(),
		ModelAID:     a.ModelID,
		ModelBID:     b.ModelID,
		ChiSquare:    chi2,
		PValue:       pValue,
		WinningModel: winner,
		AccuracyDiff: math.Round((accA-accB)*10000) / 100,
		SampleSize:   n,
	}, nil
}

func accuracy(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

func chiSquare2x2(aCorrect, aIncorrect, bCorrect, bIncorrect, rowA, rowB, colCorrect, colIncorrect, n float64) float64 {
	e11 := rowA * colCorrect / n
	e12 := rowA * colIncorrect / n
	e21 := rowB * colCorrect / n
	e22 := rowB * colIncorrect / n
	return chiTerm(aCorrect, e11) + chiTerm(aIncorrect, e12) + chiTerm(bCorrect, e21) + chiTerm(bIncorrect, e22)
}

// chiTerm guards a zero expected count; the corresponding observed count
// is then also zero and the cell contributes nothing.
func chiTerm(observed, expected float64) float64 {
	if expected == 0 {
		return 0
	}
	d := observed - expected
	return d * d / expected
}

// chiSquarePValue1df converts a chi-square statistic with one degree of
// freedom to a p-value: p = erfc(sqrt(chi2/2)).
func chiSquarePValue1df(chi2 float64) float64 {
	return erfc(math.Sqrt(chi2 / 2))
}

// erfc is the Abramowitz-Stegun rational approximation of the
// complementary error function (formula 7.1.26 family). Accurate to about
// 1.2e-7, which is ample for significance testing.
func erfc(x float64) float64 {
	z := math.Abs(x)
	t := 1 / (1 + 0.5*z)
	ans := t * math.Exp(-z*z-1.26551223+
		t*(1.00002368+
			t*(0.37409196+
				t*(0.09678418+
					t*(-0.18628806+
						t*(0.27886807+
							t*(-1.13520398+
								t*(1.48851587+
									t*(-0.82215223+t*0.17087277)))))))))
	if x >= 0 {
		return ans
	}
	return 2 - ans
}
