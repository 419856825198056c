package graphql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/nasdf/capydoc/core"
	"github.com/nasdf/capydoc/mutation"
	"github.com/nasdf/capydoc/schema"
	"github.com/nasdf/capydoc/transaction"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSchema = `
enum Role {
  ADMIN
  MEMBER
}

type Address @embedded {
  city: String!
}

type User {
  name: String!
  role: Role
  address: Address
  posts: [Post]
}

type Post {
  title: String!
  author: User
}
`

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()

	s, err := schema.Load(testSchema)
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	engine := mutation.NewEngine(core.NewStore(logger, s.Names()...), s)
	x, err := NewExecutor(engine, transaction.NewManager(engine, logger))
	require.NoError(t, err)
	return x
}

func TestGenerateSchema(t *testing.T) {
	s := schema.MustLoad(testSchema)
	generated, fields, err := GenerateSchema(s)
	require.NoError(t, err)

	user := generated.Types["User"]
	require.NotNil(t, user)
	for _, name := range []string{"id", "createdAt", "updatedAt", "name", "role", "address", "posts"} {
		assert.NotNil(t, user.Fields.ForName(name), name)
	}
	assert.Equal(t, "[Post!]!", user.Fields.ForName("posts").Type.String())

	post := generated.Types["Post"]
	require.NotNil(t, post)
	assert.Equal(t, "ID", post.Fields.ForName("authorId").Type.String())
	assert.Equal(t, "User", post.Fields.ForName("author").Type.String())

	assert.NotNil(t, generated.Types["Role"])
	assert.NotNil(t, generated.Types["Address"])
	assert.NotNil(t, generated.Types["UserPage"])
	assert.NotNil(t, generated.Query.Fields.ForName("findUser"))
	assert.NotNil(t, generated.Mutation.Fields.ForName("deleteRelatedPost"))

	assert.Equal(t, rootField{operation: createManyOperationPrefix, collection: "User"}, fields["createManyUser"])
	assert.Equal(t, rootField{operation: countOperationPrefix, collection: "Post"}, fields["countPost"])
	assert.Len(t, fields, 2*(len(queryOperationPrefixes)+len(mutationOperationPrefixes)))
}

func TestExecute(t *testing.T) {
	x := newTestExecutor(t)
	ctx := context.Background()

	res := x.Execute(ctx, QueryParams{Query: `mutation {
		createUser(data: {id: "u1", name: "Bob", role: "ADMIN", address: {city: "Paris"}}) { id role address { city } }
		createPost(data: {id: "p1", title: "Hi", author: {connect: "u1"}}) { author { name } }
	}`})
	require.Empty(t, res.Errors)
	data, err := json.Marshal(res.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"createUser": {"id": "u1", "role": "ADMIN", "address": {"city": "Paris"}},
		"createPost": {"author": {"name": "Bob"}}
	}`, string(data))

	res = x.Execute(ctx, QueryParams{
		Query:     `query User($id: ID!) { getUser(id: $id) { name posts { title } } countPost }`,
		Variables: map[string]any{"id": "u1"},
	})
	require.Empty(t, res.Errors)
	data, err = json.Marshal(res.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"getUser": {"name": "Bob", "posts": [{"title": "Hi"}]}, "countPost": 1}`, string(data))
}

func TestExecuteErrors(t *testing.T) {
	x := newTestExecutor(t)
	ctx := context.Background()

	res := x.Execute(ctx, QueryParams{Query: `query { getUser(id: "u1") { missing } }`})
	require.Len(t, res.Errors, 1)
	assert.Nil(t, res.Data)

	res = x.Execute(ctx, QueryParams{Query: `query A { countUser } query B { countPost }`})
	require.Len(t, res.Errors, 1)

	res = x.Execute(ctx, QueryParams{Query: `query A { countUser } query B { countPost }`, OperationName: "B"})
	require.Empty(t, res.Errors)

	res = x.Execute(ctx, QueryParams{Query: `mutation { patchUser(id: "u1", data: {name: "x"}) { id } }`})
	require.Len(t, res.Errors, 1)
	assert.Nil(t, res.Data)
	assert.Equal(t, "NotFoundError", res.Errors[0].Extensions["kind"])
	assert.NotEmpty(t, res.Errors[0].Extensions["hint"])
	assert.Equal(t, "patchUser", res.Errors[0].Path.String())
}

func TestExecuteMutationDuringTransaction(t *testing.T) {
	x := newTestExecutor(t)
	ctx := context.Background()

	tx, err := x.manager.Begin(ctx)
	require.NoError(t, err)
	defer tx.Commit(ctx)

	res := x.Execute(ctx, QueryParams{Query: `mutation { createUser(data: {name: "Bob"}) { id } }`})
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "TransactionError", res.Errors[0].Extensions["kind"])
}

func TestHandler(t *testing.T) {
	x := newTestExecutor(t)
	server := httptest.NewServer(Handler(x))
	defer server.Close()

	body := `{"query": "mutation { createUser(data: {id: \"u1\", name: \"Bob\"}) { id } }"}`
	res, err := http.Post(server.URL, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))

	var out map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	assert.Equal(t, map[string]any{"data": map[string]any{"createUser": map[string]any{"id": "u1"}}}, out)

	values := url.Values{}
	values.Set("query", `query Get($id: ID!) { getUser(id: $id) { name } }`)
	values.Set("variables", `{"id": "u1"}`)
	get, err := http.Get(server.URL + "?" + values.Encode())
	require.NoError(t, err)
	defer get.Body.Close()
	assert.Equal(t, http.StatusOK, get.StatusCode)
	out = nil
	require.NoError(t, json.NewDecoder(get.Body).Decode(&out))
	assert.Equal(t, map[string]any{"data": map[string]any{"getUser": map[string]any{"name": "Bob"}}}, out)

	values = url.Values{}
	values.Set("query", `mutation { deleteUser(id: "u1") { id } }`)
	mut, err := http.Get(server.URL + "?" + values.Encode())
	require.NoError(t, err)
	defer mut.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, mut.StatusCode)

	bad, err := http.Post(server.URL, "application/json", strings.NewReader(`{`))
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	req, err := http.NewRequest(http.MethodPut, server.URL, nil)
	require.NoError(t, err)
	put, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer put.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, put.StatusCode)
}
