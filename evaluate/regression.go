// Package evaluate は価格ラベルのサンプルに対する予測値の回帰スコアを計算します。
package evaluate

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/diamondprep/pkg/errors"
)

// Scores は1回の比較で得られる回帰指標の集合です。
type Scores struct {
	N        int     `json:"n"`
	MSE      float64 `json:"mse"`
	RMSE     float64 `json:"rmse"`
	MAE      float64 `json:"mae"`
	R2       float64 `json:"r2"` // yTrueの分散が0の場合はNaN
	MaxError float64 `json:"max_error"`
}

// String はCLI出力用の1行表現を返します。
func (s Scores) String() string {
	return fmt.Sprintf("n=%d mse=%.4f rmse=%.4f mae=%.4f r2=%.4f max_error=%.4f",
		s.N, s.MSE, s.RMSE, s.MAE, s.R2, s.MaxError)
}

// MarshalJSON はNaNのR²をnullとして書き出します。
func (s Scores) MarshalJSON() ([]byte, error) {
	type plain Scores
	out := struct {
		plain
		R2 *float64 `json:"r2"`
	}{plain: plain(s)}
	if !math.IsNaN(s.R2) {
		out.R2 = &s.R2
	}
	return json.Marshal(out)
}

// MarshalZerologObject はzerologのイベントにスコアを追加します。
func (s Scores) MarshalZerologObject(e *zerolog.Event) {
	e.Int("n", s.N).
		Float64("mse", s.MSE).
		Float64("rmse", s.RMSE).
		Float64("mae", s.MAE).
		Float64("r2", s.R2).
		Float64("max_error", s.MaxError)
}

// Compare はすべての指標を一度に計算します。
func Compare(yTrue, yPred *mat.VecDense) (Scores, error) {
	res, err := residuals("Compare", yTrue, yPred)
	if err != nil {
		return Scores{}, err
	}
	n := res.Len()

	var sq, abs, maxErr float64
	for i := 0; i < n; i++ {
		d := res.AtVec(i)
		sq += d * d
		abs += math.Abs(d)
		maxErr = math.Max(maxErr, math.Abs(d))
	}
	mse := sq / float64(n)
	return Scores{
		N:        n,
		MSE:      mse,
		RMSE:     math.Sqrt(mse),
		MAE:      abs / float64(n),
		R2:       r2(yTrue, sq),
		MaxError: maxErr,
	}, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	res, err := residuals("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	// MSE = (1/n) * Σ(yTrue - yPred)²
	return mat.Dot(res, res) / float64(res.Len()), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	res, err := residuals("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < res.Len(); i++ {
		sum += math.Abs(res.AtVec(i))
	}
	return sum / float64(res.Len()), nil
}

// R2Score は決定係数（R²）を計算する。
// yTrueがすべて同じ値の場合、R²は定義されないためNaNを返す。
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	res, err := residuals("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return r2(yTrue, mat.Dot(res, res)), nil
}

// MaxError は最大絶対誤差を計算する
func MaxError(yTrue, yPred *mat.VecDense) (float64, error) {
	res, err := residuals("MaxError", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var m float64
	for i := 0; i < res.Len(); i++ {
		m = math.Max(m, math.Abs(res.AtVec(i)))
	}
	return m, nil
}

// residuals は入力を検証し yTrue - yPred を返す。
func residuals(op string, yTrue, yPred *mat.VecDense) (*mat.VecDense, error) {
	if yTrue == nil || yPred == nil {
		return nil, errors.NewValueError(op, "nil vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return nil, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return nil, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	for i := 0; i < n; i++ {
		if math.IsNaN(yTrue.AtVec(i)) || math.IsNaN(yPred.AtVec(i)) {
			return nil, errors.NewValueError(op, fmt.Sprintf("NaN at index %d", i))
		}
	}
	res := mat.NewVecDense(n, nil)
	res.SubVec(yTrue, yPred)
	return res, nil
}

// r2 = 1 - RSS/TSS
func r2(yTrue *mat.VecDense, rss float64) float64 {
	values := mat.Col(nil, 0, yTrue)
	mean := stat.Mean(values, nil)
	var tss float64
	for _, v := range values {
		tss += (v - mean) * (v - mean)
	}
	if tss == 0 {
		return math.NaN()
	}
	return 1 - rss/tss
}
