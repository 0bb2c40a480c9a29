package handler

import (
	"net/http"
	"strconv"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin"
)

const openAPIPath = "/api-docs/openapi.json"

func schemaRef(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

func objectSchema(required []string, props map[string]*openapi3.SchemaRef) *openapi3.Schema {
	s := openapi3.NewObjectSchema()
	s.Properties = props
	s.Required = required
	return s
}

func jsonResponse(desc string, ref *openapi3.SchemaRef) *openapi3.ResponseRef {
	return &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription(desc).WithJSONSchemaRef(ref)}
}

func emptyResponse(desc string) *openapi3.ResponseRef {
	return &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription(desc)}
}

func jsonBody(ref *openapi3.SchemaRef) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(ref)}
}

func pathParams(names ...string) openapi3.Parameters {
	params := make(openapi3.Parameters, len(names))
	for i, name := range names {
		params[i] = &openapi3.ParameterRef{Value: openapi3.NewPathParameter(name).WithSchema(openapi3.NewInt64Schema())}
	}
	return params
}

var problemDescriptions = map[int]string{
	http.StatusBadRequest:          "Malformed request",
	http.StatusNotFound:            "Not found",
	http.StatusUnprocessableEntity: "Validation error",
	http.StatusInternalServerError: "Internal server error",
}

// responses builds the responses of one operation: the success response
// plus a problem response for each error status and for 500.
func responses(status int, ok *openapi3.ResponseRef, errStatuses ...int) *openapi3.Responses {
	rs := openapi3.NewResponses(openapi3.WithStatus(status, ok))
	for _, st := range append(errStatuses, http.StatusInternalServerError) {
		rs.Set(strconv.Itoa(st), jsonResponse(problemDescriptions[st], schemaRef("Problem")))
	}
	return rs
}

// openAPIDocument describes the /api/v1 routes.
func openAPIDocument() *openapi3.T {
	fieldDef := objectSchema([]string{"type"}, map[string]*openapi3.SchemaRef{
		"type":     openapi3.NewSchemaRef("", openapi3.NewStringSchema().WithEnum("string", "text", "number", "boolean", "json")),
		"required": openapi3.NewSchemaRef("", openapi3.NewBoolSchema()),
		"default":  openapi3.NewSchemaRef("", &openapi3.Schema{Description: "Stored, never applied."}),
	})

	fields := openapi3.NewObjectSchema()
	fields.Description = "Field name to field definition."
	fields.AdditionalProperties = openapi3.AdditionalProperties{Schema: schemaRef("FieldDefinition")}

	collSchema := objectSchema([]string{"fields"}, map[string]*openapi3.SchemaRef{
		"fields": openapi3.NewSchemaRef("", fields),
	})
	collSchema.Nullable = true

	anyJSON := &openapi3.Schema{Description: "Any JSON value."}

	schemas := openapi3.Schemas{
		"FieldDefinition":  openapi3.NewSchemaRef("", fieldDef),
		"CollectionSchema": openapi3.NewSchemaRef("", collSchema),
		"Collection": openapi3.NewSchemaRef("", objectSchema([]string{"id", "name", "schema"}, map[string]*openapi3.SchemaRef{
			"id":     openapi3.NewSchemaRef("", openapi3.NewInt64Schema()),
			"name":   openapi3.NewSchemaRef("", openapi3.NewStringSchema()),
			"schema": schemaRef("CollectionSchema"),
		})),
		"CreateCollection": openapi3.NewSchemaRef("", objectSchema([]string{"name"}, map[string]*openapi3.SchemaRef{
			"name":   openapi3.NewSchemaRef("", openapi3.NewStringSchema().WithMinLength(1)),
			"schema": schemaRef("CollectionSchema"),
		})),
		"UpdateCollection": openapi3.NewSchemaRef("", objectSchema(nil, map[string]*openapi3.SchemaRef{
			"name":   openapi3.NewSchemaRef("", openapi3.NewStringSchema().WithMinLength(1)),
			"schema": schemaRef("CollectionSchema"),
		})),
		"Record": openapi3.NewSchemaRef("", objectSchema([]string{"id", "collection_id", "data"}, map[string]*openapi3.SchemaRef{
			"id":            openapi3.NewSchemaRef("", openapi3.NewInt64Schema()),
			"collection_id": openapi3.NewSchemaRef("", openapi3.NewInt64Schema()),
			"data":          openapi3.NewSchemaRef("", anyJSON),
		})),
		"RecordInput": openapi3.NewSchemaRef("", objectSchema([]string{"data"}, map[string]*openapi3.SchemaRef{
			"data": openapi3.NewSchemaRef("", anyJSON),
		})),
		"Problem": openapi3.NewSchemaRef("", objectSchema([]string{"error", "message", "status"}, map[string]*openapi3.SchemaRef{
			"error":   openapi3.NewSchemaRef("", openapi3.NewStringSchema()),
			"message": openapi3.NewSchemaRef("", openapi3.NewStringSchema()),
			"details": openapi3.NewSchemaRef("", anyJSON),
			"status":  openapi3.NewSchemaRef("", openapi3.NewInt32Schema()),
		})),
	}

	collections := openapi3.NewArraySchema()
	collections.Items = schemaRef("Collection")
	records := openapi3.NewArraySchema()
	records.Items = schemaRef("Record")

	paths := openapi3.NewPaths(
		openapi3.WithPath("/api/v1/collections", &openapi3.PathItem{
			Post: &openapi3.Operation{
				OperationID: "createCollection",
				Summary:     "Create a collection",
				RequestBody: jsonBody(schemaRef("CreateCollection")),
				Responses:   responses(http.StatusCreated, jsonResponse("Collection created", schemaRef("Collection")), http.StatusBadRequest),
			},
			Get: &openapi3.Operation{
				OperationID: "listCollections",
				Summary:     "List all collections",
				Responses:   responses(http.StatusOK, jsonResponse("All collections", openapi3.NewSchemaRef("", collections))),
			},
		}),
		openapi3.WithPath("/api/v1/collections/{id}", &openapi3.PathItem{
			Parameters: pathParams("id"),
			Get: &openapi3.Operation{
				OperationID: "getCollection",
				Summary:     "Get a collection",
				Responses:   responses(http.StatusOK, jsonResponse("The collection", schemaRef("Collection")), http.StatusBadRequest, http.StatusNotFound),
			},
			Patch: &openapi3.Operation{
				OperationID: "updateCollection",
				Summary:     "Rename a collection or replace its schema; a null schema removes it",
				RequestBody: jsonBody(schemaRef("UpdateCollection")),
				Responses:   responses(http.StatusOK, jsonResponse("The updated collection", schemaRef("Collection")), http.StatusBadRequest, http.StatusNotFound),
			},
			Delete: &openapi3.Operation{
				OperationID: "deleteCollection",
				Summary:     "Delete a collection and all of its records",
				Responses:   responses(http.StatusNoContent, emptyResponse("Collection deleted"), http.StatusBadRequest),
			},
		}),
		openapi3.WithPath("/api/v1/collections/{id}/records", &openapi3.PathItem{
			Parameters: pathParams("id"),
			Post: &openapi3.Operation{
				OperationID: "createRecord",
				Summary:     "Create a record",
				RequestBody: jsonBody(schemaRef("RecordInput")),
				Responses:   responses(http.StatusCreated, jsonResponse("Record created", schemaRef("Record")), http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity),
			},
			Get: &openapi3.Operation{
				OperationID: "listRecords",
				Summary:     "List the records of a collection",
				Responses:   responses(http.StatusOK, jsonResponse("All records", openapi3.NewSchemaRef("", records)), http.StatusBadRequest),
			},
		}),
		openapi3.WithPath("/api/v1/collections/{id}/records/{record_id}", &openapi3.PathItem{
			Parameters: pathParams("id", "record_id"),
			Get: &openapi3.Operation{
				OperationID: "getRecord",
				Summary:     "Get a record",
				Responses:   responses(http.StatusOK, jsonResponse("The record", schemaRef("Record")), http.StatusBadRequest, http.StatusNotFound),
			},
			Patch: &openapi3.Operation{
				OperationID: "updateRecord",
				Summary:     "Replace the data of a record",
				RequestBody: jsonBody(schemaRef("RecordInput")),
				Responses:   responses(http.StatusOK, jsonResponse("The updated record", schemaRef("Record")), http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity),
			},
			Delete: &openapi3.Operation{
				OperationID: "deleteRecord",
				Summary:     "Delete a record",
				Responses:   responses(http.StatusNoContent, emptyResponse("Record deleted"), http.StatusBadRequest),
			},
		}),
	)

	return &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "tinybase",
			Description: "Collections of JSON records with optional schemas.",
			Version:     "1.0.0",
		},
		Paths:      paths,
		Components: &openapi3.Components{Schemas: schemas},
	}
}

func serveOpenAPI(doc *openapi3.T) gin.HandlerFunc {
	return func(c *gin.Context) {
		writeJSON(c, http.StatusOK, doc)
	}
}
