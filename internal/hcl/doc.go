// Package hcl loads pipeline definitions written in HCL.
//
// A definition file holds an optional `pipeline` block and any number of
// `job` blocks:
//
//	pipeline "ci" {
//	  allow_failure = ["benchmarks"]
//	}
//
//	job "test" {
//	  needs     = ["lint"]
//	  condition = "success() && trigger.branch == \"main\""
//	  timeout   = "10m"
//
//	  matrix {
//	    axis "os" { values = ["linux", "macos"] }
//	    exclude { os = "macos" }
//	  }
//
//	  retry {
//	    max_retries = 2
//	    backoff     = "5s"
//	  }
//
//	  step "unit" {
//	    uses = "shell"
//	    with {
//	      run = "go test ./... # ${matrix.os}"
//	    }
//	    writes = ["coverage"]
//	  }
//	}
//
// Step inputs are kept as templates; `${matrix.<axis>}` references are
// rendered per instance by the matrix package.
package hcl
