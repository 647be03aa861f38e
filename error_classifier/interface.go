package error_classifier

type Classifier interface {
	Classify(err error) Classification
	ClassifyMessage(raw string) Classification
}
