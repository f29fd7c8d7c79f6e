package domain

import (
	"testing"

	"crmcore/testutil"
)

func TestDomainImportsStandardLibraryOnly(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.NonStandardImport,
		"the record model depends on the standard library only")
}
