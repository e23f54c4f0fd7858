// Package suite defines the test suite data model and its loaders.
//
// A TestSuite is an ordered list of Steps. Each Step carries a typed
// configuration whose concrete type is selected by the step's "type" field,
// so executors receive e.g. a *RequestConfig rather than a loose map.
//
// Suites can be written in YAML or JSON:
//
//	name: user lifecycle
//	testType: API
//	baseUrl: http://localhost:8080
//	steps:
//	  - name: create user
//	    type: request
//	    config:
//	      method: POST
//	      url: /users
//	      body: {"name": "alice"}
//	      validation:
//	        statusCode: 201
//	  - name: remember id
//	    type: extraction
//	    config:
//	      variableName: id
//	      jsonPath: data.id
//	  - name: fetch user
//	    type: request
//	    config:
//	      url: /users/{{id}}
//
// Unknown step types load successfully and fail when executed, so a single
// bad step does not hide the rest of a suite.
package suite
