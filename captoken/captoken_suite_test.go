package captoken_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestCaptoken(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "captoken suite")
}
