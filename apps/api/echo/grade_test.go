package echoapi_test

import (
	"net/http"
	"testing"

	echoapi "github.com/trezcool/alama/apps/api/echo"
	"github.com/trezcool/alama/core/grade"
)

func Test_gradeApi(t *testing.T) {
	_, app := setup(t)

	runHTTPTests(t, app, []httpTest{
		{
			name: "scale", path: "/v1/grades/scale",
			wantData: marshallObj(t, echoapi.ScaleResponse{Scale: grade.DefaultScale, Points: grade.DefaultPoints, MaxPoints: 10}),
		},
		{
			name: "calculate", method: http.MethodPost, path: "/v1/grades/calculate",
			body: []byte(`{"entries": [
				{"credits": 4, "marks": 85, "term": 1},
				{"credits": 3, "letter": "b+", "term": 1},
				{"credits": 3, "letter": "A+", "term": 2}
			]}`),
			wantData: []byte(`{
				"entries": [
					{"credits": 4, "term": 1, "letter": "A", "points": 9},
					{"credits": 3, "term": 1, "letter": "B+", "points": 8},
					{"credits": 3, "term": 2, "letter": "A+", "points": 10}
				],
				"terms": [
					{"term": 1, "credits": 7, "gpa": 8.57},
					{"term": 2, "credits": 3, "gpa": 10}
				],
				"cgpa": 9
			}`),
		},
		{
			name: "calculate (unknown letter)", method: http.MethodPost, path: "/v1/grades/calculate",
			body:     []byte(`{"entries": [{"credits": 4, "letter": "E"}]}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"entries[0].letter": "unknown letter grade"}`),
		},
		{
			name: "calculate (no entries)", method: http.MethodPost, path: "/v1/grades/calculate",
			body:     []byte(`{"entries": []}`),
			wantCode: http.StatusBadRequest,
		},
	})
}
