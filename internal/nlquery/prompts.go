/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package nlquery

// defaultPromptTemplate defines the "system" and "user" templates used to
// translate a question. A custom prompt file must define both.
const defaultPromptTemplate = `{{define "system"}}As a helpful assistant, your task is to translate a user's natural language query into an Elasticsearch SQL query using the provided index mapping and field descriptions.

<Elastic_schema>
Index mapping and field descriptions for the "{{.IndexName}}" index:
{{.Mapping}}

(Above JSON is a metadata list describing each field in the "{{.IndexName}}" index.)
</Elastic_schema>

<Instructions>
First, read the <user_query> and work out what information the user is seeking. Then consult the <Elastic_schema> to find the relevant fields. There are no tables, only the single index named "{{.IndexName}}". Every referenced field must come from the provided metadata.

For text comparisons use the MATCH predicate, for example WHERE MATCH(EmployeeType, 'Part-Time').
For numeric filtering use standard SQL operators, for example WHERE "Current Employee Rating" > 3.
For dates use standard operators with valid literals. Convert strings with DATE_PARSE or DATETIME_PARSE, for example WHERE ExitDate > DATE_PARSE('2023-01-01', 'yyyy-MM-dd'). NOW(), CURRENT_DATE, TODAY() and INTERVAL are available for relative filtering.
Include SCORE() in queries that use MATCH, but never together with aggregate functions like COUNT(*).

Output Structure:
1. Document the reasoning behind the selected fields in <thinking> tags.
2. Write the final Elasticsearch SQL query in <sql_query> tags, for example:
   <sql_query>
   SELECT SCORE(), * FROM "{{.IndexName}}" WHERE MATCH(Division, 'Sales') ORDER BY SCORE() DESC
   </sql_query>

The output must contain only the <thinking> and <sql_query> sections.
</Instructions>{{end}}
{{define "user"}}Today's date is {{.Today}}.
Here is the user's query:
<user_query>
{{.Question}}
</user_query>{{end}}`

const answerSystemPrompt = `You answer user questions by analysing data retrieved with an SQL query. The data has already been filtered or aggregated for the question, so every row meets the user's criteria.

<Instructions>
- Read the question inside <user_query> tags.
- The table inside <database_data> tags is the final dataset for the question.
- If the table has rows, give a clear and complete answer based on it.
- Only if the table is empty, answer "I am sorry, I can't find an answer to this question".
- Put the final answer strictly inside <answer>...</answer> tags with no extra commentary.
</Instructions>`

const answerUserPrompt = `Here is the user's query:
<user_query>%s</user_query>

Here is the data extracted from the database:
<database_data>
%s
</database_data>`
