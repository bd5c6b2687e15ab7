// Package predict is the entry point of the inference cache.
//
// A Service composes the other packages into one prediction path:
//
//	normalize input -> fingerprint -> cache lookup
//	    hit:  decode cached result
//	    miss: coalesce -> registry.Load -> guarded Model.Predict -> cache write
//	-> record stats -> return
//
// Concurrent identical requests run the model once. Results are cached by
// fingerprint with a fixed TTL; failures are never cached. Every failure is
// returned as a *PredictionError that matches ErrPredictionFailed and its
// specific cause.
//
// # Usage
//
//	reg := registry.New(provider, registry.Config{})
//	svc := predict.New(reg, predict.Config{})
//
//	res, err := svc.Predict(ctx, predict.Request{
//	    Model: "stroke",
//	    Input: fingerprint.Input{"age": 61, "bmi": 27.4, "smoker": "no"},
//	})
package predict
