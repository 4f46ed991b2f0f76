package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewAndFormat() {
	err := New(ErrCodeInvalidOrder, "bad order")
	suite.Equal("[102] bad order", err.Error())
}

func (suite *ErrorTestSuite) TestNewf() {
	err := Newf(ErrCodeMalformedBar, "bad bar at %d", 42)
	suite.Contains(err.Error(), "bad bar at 42")
}

func (suite *ErrorTestSuite) TestWrapPreservesCause() {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCodeQueryFailed, "query failed", cause)

	suite.Contains(err.Error(), "root cause")
	suite.Equal(cause, err.Unwrap())
	suite.True(Is(err, cause))
}

func (suite *ErrorTestSuite) TestGetCodeWalksChain() {
	inner := New(ErrCodeStrategyRuntime, "strategy blew up")
	outer := fmt.Errorf("run failed: %w", inner)

	suite.Equal(ErrCodeStrategyRuntime, GetCode(outer))
	suite.True(HasCode(outer, ErrCodeStrategyRuntime))
	suite.False(HasCode(outer, ErrCodeMalformedBar))
}

func (suite *ErrorTestSuite) TestGetCodeUnknownForPlainErrors() {
	suite.Equal(ErrCodeUnknown, GetCode(fmt.Errorf("plain")))
}

func (suite *ErrorTestSuite) TestAs() {
	var target *Error

	err := Wrap(ErrCodeFetchFailed, "fetch", fmt.Errorf("io"))
	suite.True(As(fmt.Errorf("wrapped: %w", err), &target))
	suite.Equal(ErrCodeFetchFailed, target.Code)
}
