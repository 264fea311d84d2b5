// Package yamlcfg loads pipeline definitions written in YAML.
//
//	name: ci
//	allow_failure: [benchmarks]
//	jobs:
//	  lint:
//	    steps:
//	      - name: vet
//	        uses: shell
//	        with: {run: go vet ./...}
//	  test:
//	    needs: [lint]
//	    matrix:
//	      axes:
//	        os: [linux, macos]
//	        go: ["1.22", "1.23"]
//	      exclude:
//	        - {os: macos, go: "1.22"}
//
// Mapping order is significant: jobs, axes and the keys of include and
// exclude entries keep the order in which they are written.
package yamlcfg
